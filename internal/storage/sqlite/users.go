package sqlite

import (
	"context"
	"database/sql"

	"github.com/evernotelocal/qstore/internal/types"
)

// UserHandler implements spec.md §4.3.1: user records, each identified by
// its Evernote numeric id (PutUser upserts by id and does not limit how
// many distinct ids are stored), with four optional sub-blocks that are deleted by being left nil on put
// (invariant 8).
type UserHandler struct {
	pool *Pool
}

// NewUserHandler constructs a handler bound to pool.
func NewUserHandler(pool *Pool) *UserHandler {
	return &UserHandler{pool: pool}
}

// PutUser inserts or updates the user row and its four sub-blocks. A nil
// sub-block deletes the corresponding row.
func (h *UserHandler) PutUser(ctx context.Context, u *types.User) error {
	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		_, err := scope.Exec(ctx, `
			INSERT INTO users (id, username, email, name, timezone, privilege, service_level,
				created, updated, deleted, active, shard_id)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				username=excluded.username, email=excluded.email, name=excluded.name,
				timezone=excluded.timezone, privilege=excluded.privilege, service_level=excluded.service_level,
				created=excluded.created, updated=excluded.updated, deleted=excluded.deleted,
				active=excluded.active, shard_id=excluded.shard_id
		`,
			u.ID, nullString(u.Username), nullString(u.Email), nullString(u.Name), nullString(u.Timezone),
			nullPrivilegeLevel(u.Privilege), nullInt32(u.ServiceLevel), nullTime(u.Created), nullTime(u.Updated),
			nullTime(u.Deleted), nullBool(u.Active), nullString(u.ShardID),
		)
		if err != nil {
			return wrapDBError("putUser", err)
		}

		if err := putOrDeleteUserAttributes(ctx, scope, u.ID, u.Attributes); err != nil {
			return err
		}
		if err := putOrDeleteAccounting(ctx, scope, u.ID, u.Accounting); err != nil {
			return err
		}
		if err := putOrDeleteBusinessInfo(ctx, scope, u.ID, u.BusinessUserInfo); err != nil {
			return err
		}
		return putOrDeleteAccountLimits(ctx, scope, u.ID, u.AccountLimits)
	})
}

func nullPrivilegeLevel(p *types.PrivilegeLevel) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func putOrDeleteUserAttributes(ctx context.Context, scope *TxScope, userID int32, a *types.UserAttributes) error {
	if a == nil {
		_, err := scope.Exec(ctx, `DELETE FROM user_attributes WHERE user_id = ?`, userID)
		return wrapDBError("putUser: attributes", err)
	}
	promotions, err := encodeStringSlice(a.ViewedPromotions)
	if err != nil {
		return err
	}
	addresses, err := encodeStringSlice(a.RecentMailedAddresses)
	if err != nil {
		return err
	}
	classifications, err := encodeStringMap(a.Classifications)
	if err != nil {
		return err
	}
	_, err = scope.Exec(ctx, `
		INSERT INTO user_attributes (user_id, default_location_name, default_latitude, default_longitude,
			preactivation_done, viewed_promotions, incoming_email_address, recent_mailed_addresses, comments,
			date_agreed_to_tos, max_referrals, referral_count, referer_code, sent_email_date, sent_email_count,
			daily_email_limit, email_opt_out_date, partner_email_opt_in_date, preferred_language,
			preferred_country, clip_full_page, twitter_user_name, twitter_id, group_name, recognition_language,
			referral_proof, educational_discount, business_address, hide_sponsor_billing, tax_exempt,
			use_email_auto_filing, reminder_email_config, email_address_last_confirmed, password_updated,
			salesforce_push_enabled, should_log_client_event, classifications)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(user_id) DO UPDATE SET
			default_location_name=excluded.default_location_name, default_latitude=excluded.default_latitude,
			default_longitude=excluded.default_longitude, preactivation_done=excluded.preactivation_done,
			viewed_promotions=excluded.viewed_promotions, incoming_email_address=excluded.incoming_email_address,
			recent_mailed_addresses=excluded.recent_mailed_addresses, comments=excluded.comments,
			date_agreed_to_tos=excluded.date_agreed_to_tos, max_referrals=excluded.max_referrals,
			referral_count=excluded.referral_count, referer_code=excluded.referer_code,
			sent_email_date=excluded.sent_email_date, sent_email_count=excluded.sent_email_count,
			daily_email_limit=excluded.daily_email_limit, email_opt_out_date=excluded.email_opt_out_date,
			partner_email_opt_in_date=excluded.partner_email_opt_in_date, preferred_language=excluded.preferred_language,
			preferred_country=excluded.preferred_country, clip_full_page=excluded.clip_full_page,
			twitter_user_name=excluded.twitter_user_name, twitter_id=excluded.twitter_id,
			group_name=excluded.group_name, recognition_language=excluded.recognition_language,
			referral_proof=excluded.referral_proof, educational_discount=excluded.educational_discount,
			business_address=excluded.business_address, hide_sponsor_billing=excluded.hide_sponsor_billing,
			tax_exempt=excluded.tax_exempt, use_email_auto_filing=excluded.use_email_auto_filing,
			reminder_email_config=excluded.reminder_email_config,
			email_address_last_confirmed=excluded.email_address_last_confirmed,
			password_updated=excluded.password_updated, salesforce_push_enabled=excluded.salesforce_push_enabled,
			should_log_client_event=excluded.should_log_client_event, classifications=excluded.classifications
	`,
		userID, nullString(a.DefaultLocationName), nullFloat64(a.DefaultLatitude), nullFloat64(a.DefaultLongitude),
		a.PreactivationDone, promotions, nullString(a.IncomingEmailAddress), addresses, nullString(a.Comments),
		nullTime(a.DateAgreedToTermsOfService), nullInt32(a.MaxReferrals), nullInt32(a.ReferralCount),
		nullString(a.RefererCode), nullTime(a.SentEmailDate), a.SentEmailCount, a.DailyEmailLimit,
		nullTime(a.EmailOptOutDate), nullTime(a.PartnerEmailOptInDate), nullString(a.PreferredLanguage),
		nullString(a.PreferredCountry), a.ClipFullPage, nullString(a.TwitterUserName), nullString(a.TwitterID),
		nullString(a.GroupName), nullString(a.RecognitionLanguage), nullString(a.ReferralProof),
		a.EducationalDiscount, nullString(a.BusinessAddress), a.HideSponsorBilling, a.TaxExempt,
		a.UseEmailAutoFiling, nullInt32(a.ReminderEmailConfig), nullTime(a.EmailAddressLastConfirmed),
		nullTime(a.PasswordUpdated), a.SalesforcePushEnabled, a.ShouldLogClientEvent, classifications,
	)
	return wrapDBError("putUser: attributes", err)
}

func putOrDeleteAccounting(ctx context.Context, scope *TxScope, userID int32, a *types.Accounting) error {
	if a == nil {
		_, err := scope.Exec(ctx, `DELETE FROM user_accounting WHERE user_id = ?`, userID)
		return wrapDBError("putUser: accounting", err)
	}
	_, err := scope.Exec(ctx, `
		INSERT INTO user_accounting (user_id, upload_limit_end, upload_limit_next_month, premium_service_status,
			premium_order_number, premium_commerce_service, premium_service_start, premium_service_sku,
			last_successful_charge, last_failed_charge, last_failed_charge_reason, next_payment_due,
			premium_lock_until, updated, premium_subscription_number, last_requested_charge, currency,
			unit_price, business_id, business_name, business_role, unit_discount, next_charge_date,
			available_points)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(user_id) DO UPDATE SET
			upload_limit_end=excluded.upload_limit_end, upload_limit_next_month=excluded.upload_limit_next_month,
			premium_service_status=excluded.premium_service_status, premium_order_number=excluded.premium_order_number,
			premium_commerce_service=excluded.premium_commerce_service, premium_service_start=excluded.premium_service_start,
			premium_service_sku=excluded.premium_service_sku, last_successful_charge=excluded.last_successful_charge,
			last_failed_charge=excluded.last_failed_charge, last_failed_charge_reason=excluded.last_failed_charge_reason,
			next_payment_due=excluded.next_payment_due, premium_lock_until=excluded.premium_lock_until,
			updated=excluded.updated, premium_subscription_number=excluded.premium_subscription_number,
			last_requested_charge=excluded.last_requested_charge, currency=excluded.currency,
			unit_price=excluded.unit_price, business_id=excluded.business_id, business_name=excluded.business_name,
			business_role=excluded.business_role, unit_discount=excluded.unit_discount,
			next_charge_date=excluded.next_charge_date, available_points=excluded.available_points
	`,
		userID, nullTime(a.UploadLimitEnd), a.UploadLimitNextMonth, nullInt32(a.PremiumServiceStatus),
		nullString(a.PremiumOrderNumber), nullString(a.PremiumCommerceService), nullTime(a.PremiumServiceStart),
		nullString(a.PremiumServiceSKU), nullTime(a.LastSuccessfulCharge), nullTime(a.LastFailedCharge),
		nullString(a.LastFailedChargeReason), nullTime(a.NextPaymentDue), nullTime(a.PremiumLockUntil),
		nullTime(a.Updated), nullString(a.PremiumSubscriptionNumber), nullTime(a.LastRequestedCharge),
		nullString(a.Currency), nullInt32(a.UnitPrice), nullInt32(a.BusinessID), nullString(a.BusinessName),
		nullInt32(a.BusinessRole), nullInt32(a.UnitDiscount), nullTime(a.NextChargeDate), nullInt32(a.AvailablePoints),
	)
	return wrapDBError("putUser: accounting", err)
}

func putOrDeleteBusinessInfo(ctx context.Context, scope *TxScope, userID int32, b *types.BusinessUserInfo) error {
	if b == nil {
		_, err := scope.Exec(ctx, `DELETE FROM user_business_info WHERE user_id = ?`, userID)
		return wrapDBError("putUser: business info", err)
	}
	_, err := scope.Exec(ctx, `
		INSERT INTO user_business_info (user_id, business_id, business_name, role, email, updated)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(user_id) DO UPDATE SET
			business_id=excluded.business_id, business_name=excluded.business_name, role=excluded.role,
			email=excluded.email, updated=excluded.updated
	`, userID, nullInt32(b.BusinessID), nullString(b.BusinessName), nullInt32(b.Role), nullString(b.Email), nullTime(b.Updated))
	return wrapDBError("putUser: business info", err)
}

func putOrDeleteAccountLimits(ctx context.Context, scope *TxScope, userID int32, l *types.AccountLimits) error {
	if l == nil {
		_, err := scope.Exec(ctx, `DELETE FROM user_account_limits WHERE user_id = ?`, userID)
		return wrapDBError("putUser: account limits", err)
	}
	_, err := scope.Exec(ctx, `
		INSERT INTO user_account_limits (user_id, user_mail_limit_daily, note_size_max, resource_size_max,
			user_linked_notebook_max, upload_limit, user_note_count_max, user_notebook_count_max,
			user_tag_count_max, note_tag_count_max, user_saved_searches_max, note_resource_count_max)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(user_id) DO UPDATE SET
			user_mail_limit_daily=excluded.user_mail_limit_daily, note_size_max=excluded.note_size_max,
			resource_size_max=excluded.resource_size_max, user_linked_notebook_max=excluded.user_linked_notebook_max,
			upload_limit=excluded.upload_limit, user_note_count_max=excluded.user_note_count_max,
			user_notebook_count_max=excluded.user_notebook_count_max, user_tag_count_max=excluded.user_tag_count_max,
			note_tag_count_max=excluded.note_tag_count_max, user_saved_searches_max=excluded.user_saved_searches_max,
			note_resource_count_max=excluded.note_resource_count_max
	`,
		userID, nullInt32(l.UserMailLimitDaily), nullInt64(l.NoteSizeMax), nullInt64(l.ResourceSizeMax),
		nullInt32(l.UserLinkedNotebookMax), nullInt64(l.UploadLimit), nullInt32(l.UserNoteCountMax),
		nullInt32(l.UserNotebookCountMax), nullInt32(l.UserTagCountMax), nullInt32(l.NoteTagCountMax),
		nullInt32(l.UserSavedSearchesMax), nullInt32(l.NoteResourceCountMax),
	)
	return wrapDBError("putUser: account limits", err)
}

// FindUser fetches the user row by its Evernote numeric id, along with
// whichever of its four sub-blocks are present.
func (h *UserHandler) FindUser(ctx context.Context, id int32) (*types.User, error) {
	row := h.pool.DB().QueryRowContext(ctx, `
		SELECT id, username, email, name, timezone, privilege, service_level, created, updated, deleted, active, shard_id
		FROM users WHERE id = ?`, id)

	var u types.User
	var username, email, name, timezone, shardID sql.NullString
	var privilege, serviceLevel sql.NullInt64
	var created, updated, deleted sql.NullTime
	var active sql.NullBool
	if err := row.Scan(&u.ID, &username, &email, &name, &timezone, &privilege, &serviceLevel, &created, &updated, &deleted, &active, &shardID); err != nil {
		return nil, wrapDBError("findUser", err)
	}
	u.Username = fromNullString(username)
	u.Email = fromNullString(email)
	u.Name = fromNullString(name)
	u.Timezone = fromNullString(timezone)
	u.ShardID = fromNullString(shardID)
	if privilege.Valid {
		p := types.PrivilegeLevel(privilege.Int64)
		u.Privilege = &p
	}
	u.ServiceLevel = fromNullInt32(serviceLevel)
	u.Created = fromNullTime(created)
	u.Updated = fromNullTime(updated)
	u.Deleted = fromNullTime(deleted)
	u.Active = fromNullBool(active)

	attrs, err := h.findUserAttributes(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Attributes = attrs

	accounting, err := h.findUserAccounting(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Accounting = accounting

	businessInfo, err := h.findUserBusinessInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	u.BusinessUserInfo = businessInfo

	limits, err := h.findUserAccountLimits(ctx, id)
	if err != nil {
		return nil, err
	}
	u.AccountLimits = limits

	return &u, nil
}

func (h *UserHandler) findUserAttributes(ctx context.Context, userID int32) (*types.UserAttributes, error) {
	row := h.pool.DB().QueryRowContext(ctx, `
		SELECT default_location_name, default_latitude, default_longitude, preactivation_done,
			viewed_promotions, incoming_email_address, recent_mailed_addresses, comments,
			date_agreed_to_tos, max_referrals, referral_count, referer_code, sent_email_date, sent_email_count,
			daily_email_limit, email_opt_out_date, partner_email_opt_in_date, preferred_language,
			preferred_country, clip_full_page, twitter_user_name, twitter_id, group_name, recognition_language,
			referral_proof, educational_discount, business_address, hide_sponsor_billing, tax_exempt,
			use_email_auto_filing, reminder_email_config, email_address_last_confirmed, password_updated,
			salesforce_push_enabled, should_log_client_event, classifications
		FROM user_attributes WHERE user_id = ?`, userID)

	var a types.UserAttributes
	var locName, incomingEmail, comments, refererCode, preferredLanguage, preferredCountry sql.NullString
	var twitterUserName, twitterID, groupName, recognitionLanguage, referralProof, businessAddress sql.NullString
	var lat, lon sql.NullFloat64
	var promotions, addresses, classifications sql.NullString
	var dateAgreedToTOS, sentEmailDate, emailOptOutDate, partnerEmailOptInDate sql.NullTime
	var emailAddressLastConfirmed, passwordUpdated sql.NullTime
	var maxReferrals, referralCount, reminderEmailConfig sql.NullInt64

	err := row.Scan(&locName, &lat, &lon, &a.PreactivationDone, &promotions, &incomingEmail, &addresses, &comments,
		&dateAgreedToTOS, &maxReferrals, &referralCount, &refererCode, &sentEmailDate, &a.SentEmailCount,
		&a.DailyEmailLimit, &emailOptOutDate, &partnerEmailOptInDate, &preferredLanguage, &preferredCountry,
		&a.ClipFullPage, &twitterUserName, &twitterID, &groupName, &recognitionLanguage, &referralProof,
		&a.EducationalDiscount, &businessAddress, &a.HideSponsorBilling, &a.TaxExempt, &a.UseEmailAutoFiling,
		&reminderEmailConfig, &emailAddressLastConfirmed, &passwordUpdated, &a.SalesforcePushEnabled,
		&a.ShouldLogClientEvent, &classifications)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("findUser: attributes", err)
	}
	a.DefaultLocationName = fromNullString(locName)
	a.DefaultLatitude = fromNullFloat64(lat)
	a.DefaultLongitude = fromNullFloat64(lon)
	a.IncomingEmailAddress = fromNullString(incomingEmail)
	a.Comments = fromNullString(comments)
	a.DateAgreedToTermsOfService = fromNullTime(dateAgreedToTOS)
	a.MaxReferrals = fromNullInt32(maxReferrals)
	a.ReferralCount = fromNullInt32(referralCount)
	a.RefererCode = fromNullString(refererCode)
	a.SentEmailDate = fromNullTime(sentEmailDate)
	a.EmailOptOutDate = fromNullTime(emailOptOutDate)
	a.PartnerEmailOptInDate = fromNullTime(partnerEmailOptInDate)
	a.PreferredLanguage = fromNullString(preferredLanguage)
	a.PreferredCountry = fromNullString(preferredCountry)
	a.TwitterUserName = fromNullString(twitterUserName)
	a.TwitterID = fromNullString(twitterID)
	a.GroupName = fromNullString(groupName)
	a.RecognitionLanguage = fromNullString(recognitionLanguage)
	a.ReferralProof = fromNullString(referralProof)
	a.BusinessAddress = fromNullString(businessAddress)
	a.ReminderEmailConfig = fromNullInt32(reminderEmailConfig)
	a.EmailAddressLastConfirmed = fromNullTime(emailAddressLastConfirmed)
	a.PasswordUpdated = fromNullTime(passwordUpdated)
	a.ViewedPromotions, err = decodeStringSlice(promotions)
	if err != nil {
		return nil, err
	}
	a.RecentMailedAddresses, err = decodeStringSlice(addresses)
	if err != nil {
		return nil, err
	}
	a.Classifications, err = decodeStringMap(classifications)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (h *UserHandler) findUserAccounting(ctx context.Context, userID int32) (*types.Accounting, error) {
	row := h.pool.DB().QueryRowContext(ctx, `
		SELECT upload_limit_end, upload_limit_next_month, premium_service_status, premium_order_number,
			premium_commerce_service, premium_service_start, premium_service_sku, last_successful_charge,
			last_failed_charge, last_failed_charge_reason, next_payment_due, premium_lock_until, updated,
			premium_subscription_number, last_requested_charge, currency, unit_price, business_id, business_name,
			business_role, unit_discount, next_charge_date, available_points
		FROM user_accounting WHERE user_id = ?`, userID)

	var a types.Accounting
	var premiumOrderNumber, premiumCommerceService, premiumServiceSKU, lastFailedChargeReason sql.NullString
	var premiumSubscriptionNumber, currency, businessName sql.NullString
	var uploadLimitEnd, premiumServiceStart, lastSuccessfulCharge, lastFailedCharge sql.NullTime
	var nextPaymentDue, premiumLockUntil, updated, lastRequestedCharge, nextChargeDate sql.NullTime
	var premiumServiceStatus, unitPrice, businessID, businessRole, unitDiscount, availablePoints sql.NullInt64

	err := row.Scan(&uploadLimitEnd, &a.UploadLimitNextMonth, &premiumServiceStatus, &premiumOrderNumber,
		&premiumCommerceService, &premiumServiceStart, &premiumServiceSKU, &lastSuccessfulCharge,
		&lastFailedCharge, &lastFailedChargeReason, &nextPaymentDue, &premiumLockUntil, &updated,
		&premiumSubscriptionNumber, &lastRequestedCharge, &currency, &unitPrice, &businessID, &businessName,
		&businessRole, &unitDiscount, &nextChargeDate, &availablePoints)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("findUser: accounting", err)
	}
	a.UploadLimitEnd = fromNullTime(uploadLimitEnd)
	a.PremiumServiceStatus = fromNullInt32(premiumServiceStatus)
	a.PremiumOrderNumber = fromNullString(premiumOrderNumber)
	a.PremiumCommerceService = fromNullString(premiumCommerceService)
	a.PremiumServiceStart = fromNullTime(premiumServiceStart)
	a.PremiumServiceSKU = fromNullString(premiumServiceSKU)
	a.LastSuccessfulCharge = fromNullTime(lastSuccessfulCharge)
	a.LastFailedCharge = fromNullTime(lastFailedCharge)
	a.LastFailedChargeReason = fromNullString(lastFailedChargeReason)
	a.NextPaymentDue = fromNullTime(nextPaymentDue)
	a.PremiumLockUntil = fromNullTime(premiumLockUntil)
	a.Updated = fromNullTime(updated)
	a.PremiumSubscriptionNumber = fromNullString(premiumSubscriptionNumber)
	a.LastRequestedCharge = fromNullTime(lastRequestedCharge)
	a.Currency = fromNullString(currency)
	a.UnitPrice = fromNullInt32(unitPrice)
	a.BusinessID = fromNullInt32(businessID)
	a.BusinessName = fromNullString(businessName)
	a.BusinessRole = fromNullInt32(businessRole)
	a.UnitDiscount = fromNullInt32(unitDiscount)
	a.NextChargeDate = fromNullTime(nextChargeDate)
	a.AvailablePoints = fromNullInt32(availablePoints)
	return &a, nil
}

func (h *UserHandler) findUserBusinessInfo(ctx context.Context, userID int32) (*types.BusinessUserInfo, error) {
	row := h.pool.DB().QueryRowContext(ctx, `
		SELECT business_id, business_name, role, email, updated FROM user_business_info WHERE user_id = ?`, userID)
	var b types.BusinessUserInfo
	var businessName, email sql.NullString
	var businessID, role sql.NullInt64
	var updated sql.NullTime
	err := row.Scan(&businessID, &businessName, &role, &email, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("findUser: business info", err)
	}
	b.BusinessID = fromNullInt32(businessID)
	b.BusinessName = fromNullString(businessName)
	b.Role = fromNullInt32(role)
	b.Email = fromNullString(email)
	b.Updated = fromNullTime(updated)
	return &b, nil
}

func (h *UserHandler) findUserAccountLimits(ctx context.Context, userID int32) (*types.AccountLimits, error) {
	row := h.pool.DB().QueryRowContext(ctx, `
		SELECT user_mail_limit_daily, note_size_max, resource_size_max, user_linked_notebook_max, upload_limit,
			user_note_count_max, user_notebook_count_max, user_tag_count_max, note_tag_count_max,
			user_saved_searches_max, note_resource_count_max
		FROM user_account_limits WHERE user_id = ?`, userID)
	var l types.AccountLimits
	var mailLimit, linkedNotebookMax, noteCountMax, notebookCountMax, tagCountMax, noteTagCountMax sql.NullInt64
	var savedSearchesMax, resourceCountMax sql.NullInt64
	var noteSizeMax, resourceSizeMax, uploadLimit sql.NullInt64
	err := row.Scan(&mailLimit, &noteSizeMax, &resourceSizeMax, &linkedNotebookMax, &uploadLimit, &noteCountMax,
		&notebookCountMax, &tagCountMax, &noteTagCountMax, &savedSearchesMax, &resourceCountMax)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("findUser: account limits", err)
	}
	l.UserMailLimitDaily = fromNullInt32(mailLimit)
	l.NoteSizeMax = fromNullInt64(noteSizeMax)
	l.ResourceSizeMax = fromNullInt64(resourceSizeMax)
	l.UserLinkedNotebookMax = fromNullInt32(linkedNotebookMax)
	l.UploadLimit = fromNullInt64(uploadLimit)
	l.UserNoteCountMax = fromNullInt32(noteCountMax)
	l.UserNotebookCountMax = fromNullInt32(notebookCountMax)
	l.UserTagCountMax = fromNullInt32(tagCountMax)
	l.NoteTagCountMax = fromNullInt32(noteTagCountMax)
	l.UserSavedSearchesMax = fromNullInt32(savedSearchesMax)
	l.NoteResourceCountMax = fromNullInt32(resourceCountMax)
	return &l, nil
}

// ExpungeUser deletes the user row and its sub-blocks (cascaded by
// ON DELETE CASCADE foreign keys).
func (h *UserHandler) ExpungeUser(ctx context.Context, id int32) error {
	conn, err := h.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return withTx(ctx, conn, TxImmediate, func(scope *TxScope) error {
		res, err := scope.Exec(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return wrapDBError("expungeUser", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return types.NotFoundf("expungeUser: %d", id)
		}
		return nil
	})
}
