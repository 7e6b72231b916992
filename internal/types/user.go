package types

import "time"

// UserAttributes is the optional attributes sub-block of a User. A put with
// this block nil deletes the stored block (see invariant 8 in spec.md §3,
// extended to users).
type UserAttributes struct {
	DefaultLocationName   *string
	DefaultLatitude       *float64
	DefaultLongitude      *float64
	PreactivationDone     bool
	ViewedPromotions      []string
	IncomingEmailAddress  *string
	RecentMailedAddresses []string
	Comments              *string
	DateAgreedToTermsOfService *time.Time
	MaxReferrals          *int32
	ReferralCount         *int32
	RefererCode           *string
	SentEmailDate         *time.Time
	SentEmailCount        int32
	DailyEmailLimit       int32
	EmailOptOutDate       *time.Time
	PartnerEmailOptInDate *time.Time
	PreferredLanguage     *string
	PreferredCountry      *string
	ClipFullPage          bool
	TwitterUserName       *string
	TwitterID             *string
	GroupName             *string
	RecognitionLanguage   *string
	ReferralProof         *string
	EducationalDiscount   bool
	BusinessAddress       *string
	HideSponsorBilling    bool
	TaxExempt             bool
	UseEmailAutoFiling    bool
	ReminderEmailConfig   *int32
	EmailAddressLastConfirmed *time.Time
	PasswordUpdated       *time.Time
	SalesforcePushEnabled bool
	ShouldLogClientEvent  bool
	Classifications       map[string]string
}

// BusinessUserInfo is the optional business-membership sub-block of a User.
type BusinessUserInfo struct {
	BusinessID    *int32
	BusinessName  *string
	Role          *int32
	Email         *string
	Updated       *time.Time
}

// Accounting is the optional billing/accounting sub-block of a User.
type Accounting struct {
	UploadLimitEnd        *time.Time
	UploadLimitNextMonth  int64
	PremiumServiceStatus  *int32
	PremiumOrderNumber    *string
	PremiumCommerceService *string
	PremiumServiceStart   *time.Time
	PremiumServiceSKU     *string
	LastSuccessfulCharge  *time.Time
	LastFailedCharge      *time.Time
	LastFailedChargeReason *string
	NextPaymentDue        *time.Time
	PremiumLockUntil      *time.Time
	Updated               *time.Time
	PremiumSubscriptionNumber *string
	LastRequestedCharge   *time.Time
	Currency              *string
	UnitPrice             *int32
	BusinessID            *int32
	BusinessName          *string
	BusinessRole          *int32
	UnitDiscount          *int32
	NextChargeDate        *time.Time
	AvailablePoints       *int32
}

// AccountLimits is the optional account-limits sub-block of a User.
type AccountLimits struct {
	UserMailLimitDaily       *int32
	NoteSizeMax              *int64
	ResourceSizeMax          *int64
	UserLinkedNotebookMax    *int32
	UploadLimit              *int64
	UserNoteCountMax         *int32
	UserNotebookCountMax     *int32
	UserTagCountMax          *int32
	NoteTagCountMax          *int32
	UserSavedSearchesMax     *int32
	NoteResourceCountMax     *int32
}

// User is an account on the local storage: the Evernote user id, profile
// fields, timestamps and the four present-or-absent sub-blocks. A put with a
// sub-block left nil deletes that block from storage (invariant 8).
type User struct {
	ID               int32
	Username         *string
	Email            *string
	Name             *string
	Timezone         *string
	Privilege        *PrivilegeLevel
	ServiceLevel     *int32
	Created          *time.Time
	Updated          *time.Time
	Deleted          *time.Time
	Active           *bool
	ShardID          *string
	Attributes       *UserAttributes
	Accounting       *Accounting
	BusinessUserInfo *BusinessUserInfo
	AccountLimits    *AccountLimits
}
