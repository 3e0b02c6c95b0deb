package common

import "strings"

// AttachmentType classifies a message attachment by its MIME type
type AttachmentType string

const (
	AttachmentTypeImage AttachmentType = "image"
	AttachmentTypeVideo AttachmentType = "video"
	AttachmentTypeFile  AttachmentType = "file"
)

// String returns the string representation
func (at AttachmentType) String() string {
	return string(at)
}

// IsValid checks if the attachment type is valid
func (at AttachmentType) IsValid() bool {
	switch at {
	case AttachmentTypeImage, AttachmentTypeVideo, AttachmentTypeFile:
		return true
	}
	return false
}

func DetectAttachmentType(mimeType string) AttachmentType {
	lowerMimeType := strings.ToLower(mimeType)
	if strings.HasPrefix(lowerMimeType, "image/") {
		return AttachmentTypeImage
	}
	if strings.HasPrefix(lowerMimeType, "video/") {
		return AttachmentTypeVideo
	}
	return AttachmentTypeFile
}
