package bluesky

import "encoding/json"

const (
	EmbedImages          = "app.bsky.embed.images"
	EmbedRecord          = "app.bsky.embed.record"
	EmbedRecordWithMedia = "app.bsky.embed.recordWithMedia"
)

// BlobRef represents an AT Protocol blob reference for uploaded content.
type BlobRef struct {
	Type string `json:"$type"`
	Ref  struct {
		Link string `json:"$link"`
	} `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// StrongRef pins a record by uri and content hash.
type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type ReplyRef struct {
	Root   StrongRef `json:"root"`
	Parent StrongRef `json:"parent"`
}

// PostRecord is the record body for app.bsky.feed.post. Embed holds one of
// the embed shapes below, or nil.
type PostRecord struct {
	Type      string    `json:"$type"`
	Text      string    `json:"text"`
	CreatedAt string    `json:"createdAt"`
	Reply     *ReplyRef `json:"reply,omitempty"`
	Embed     any       `json:"embed,omitempty"`
}

type Image struct {
	Image BlobRef `json:"image"`
	Alt   string  `json:"alt"`
}

type ImagesEmbed struct {
	Type   string  `json:"$type"`
	Images []Image `json:"images"`
}

type RecordEmbed struct {
	Type   string    `json:"$type"`
	Record StrongRef `json:"record"`
}

type RecordWithMediaEmbed struct {
	Type   string      `json:"$type"`
	Media  ImagesEmbed `json:"media"`
	Record RecordEmbed `json:"record"`
}

func NewImagesEmbed(blobs []BlobRef) ImagesEmbed {
	images := make([]Image, 0, len(blobs))
	for _, b := range blobs {
		images = append(images, Image{Image: b})
	}
	return ImagesEmbed{Type: EmbedImages, Images: images}
}

func NewRecordEmbed(ref StrongRef) RecordEmbed {
	return RecordEmbed{Type: EmbedRecord, Record: ref}
}

func NewRecordWithMediaEmbed(ref StrongRef, blobs []BlobRef) RecordWithMediaEmbed {
	return RecordWithMediaEmbed{
		Type:   EmbedRecordWithMedia,
		Media:  NewImagesEmbed(blobs),
		Record: NewRecordEmbed(ref),
	}
}

type Author struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

type PostView struct {
	URI       string          `json:"uri"`
	CID       string          `json:"cid"`
	Author    Author          `json:"author"`
	Record    json.RawMessage `json:"record"`
	IndexedAt string          `json:"indexedAt"`
}

func (p *PostView) Ref() StrongRef {
	return StrongRef{URI: p.URI, CID: p.CID}
}

// DecodeRecord reads the feed post fields out of the raw record.
func (p *PostView) DecodeRecord() (*PostRecord, error) {
	var record PostRecord
	if err := json.Unmarshal(p.Record, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

type FeedViewPost struct {
	Post PostView `json:"post"`
}
