package types

// ResourceAttributes is the optional attributes sub-block of a Resource.
type ResourceAttributes struct {
	SourceURL          *string
	Timestamp          *int64
	Latitude           *float64
	Longitude          *float64
	Altitude           *float64
	CameraMake         *string
	CameraModel        *string
	ClientWillIndex    bool
	RecoType           *string
	FileName           *string
	Attachment         bool
	ApplicationData    *FullMap
}

// ResourceData is a data/alternate-data/recognition-data body: bytes plus
// their declared size and MD5 hash.
type ResourceData struct {
	Body []byte
	Size int32
	MD5  []byte // 16-byte MD5 digest
}

// Resource is an attachment (blob) owned by a note, with optional
// recognition and alternate data, MIME/dimensions and an attributes block
// that may carry an application-data key/value map.
type Resource struct {
	LocalID              LocalID
	Guid                 *Guid
	NoteLocalID          LocalID // authoritative back-reference, see DESIGN.md
	NoteGuid             *Guid
	Data                 *ResourceData
	AlternateData        *ResourceData
	RecognitionData      *ResourceData
	Mime                 *string
	Width                *int16
	Height               *int16
	UpdateSequenceNumber *int32
	Attributes           *ResourceAttributes
	IndexInNote          int
	LocallyModified      bool
}
