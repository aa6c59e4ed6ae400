package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OfferMetadataImageFormat tags the encoding of an OfferMetadata image.
type OfferMetadataImageFormat string

const (
	ImageFormatPNG  OfferMetadataImageFormat = "png"
	ImageFormatJPEG OfferMetadataImageFormat = "jpeg"
)

// OfferMetadataImage is a base64-encoded PNG or JPEG, exactly one of the two
// tags populated.
type OfferMetadataImage struct {
	Format OfferMetadataImageFormat
	Data   []byte
}

// MarshalJSON renders the image as the tagged `{"png":"..."}` /
// `{"jpeg":"..."}` shape used on the wire.
func (i OfferMetadataImage) MarshalJSON() ([]byte, error) {
	encoded := base64.StdEncoding.EncodeToString(i.Data)
	switch i.Format {
	case ImageFormatPNG:
		return json.Marshal(struct {
			PNG string `json:"png"`
		}{encoded})
	case ImageFormatJPEG:
		return json.Marshal(struct {
			JPEG string `json:"jpeg"`
		}{encoded})
	default:
		return nil, fmt.Errorf("unknown offer metadata image format %q", i.Format)
	}
}

// UnmarshalJSON reads the tagged image shape back.
func (i *OfferMetadataImage) UnmarshalJSON(data []byte) error {
	var tagged struct {
		PNG  *string `json:"png"`
		JPEG *string `json:"jpeg"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}

	var (
		format  OfferMetadataImageFormat
		encoded string
	)
	switch {
	case tagged.PNG != nil:
		format, encoded = ImageFormatPNG, *tagged.PNG
	case tagged.JPEG != nil:
		format, encoded = ImageFormatJPEG, *tagged.JPEG
	default:
		return fmt.Errorf("offer metadata image must set png or jpeg")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decoding offer metadata image: %w", err)
	}
	i.Format, i.Data = format, raw
	return nil
}

// OfferMetadataIdentifierKind tags whether an identifier is free text or a
// validated email address.
type OfferMetadataIdentifierKind string

const (
	IdentifierText  OfferMetadataIdentifierKind = "text"
	IdentifierEmail OfferMetadataIdentifierKind = "email"
)

// OfferMetadataIdentifier is a payee-supplied identifier string, tagged as
// plain text or an email address.
type OfferMetadataIdentifier struct {
	Kind  OfferMetadataIdentifierKind
	Value string
}

// MarshalJSON renders the tagged `{"text":"..."}` / `{"email":"..."}` shape.
func (o OfferMetadataIdentifier) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case IdentifierText:
		return json.Marshal(struct {
			Text string `json:"text"`
		}{o.Value})
	case IdentifierEmail:
		return json.Marshal(struct {
			Email string `json:"email"`
		}{o.Value})
	default:
		return nil, fmt.Errorf("unknown offer metadata identifier kind %q", o.Kind)
	}
}

// UnmarshalJSON reads the tagged identifier shape back.
func (o *OfferMetadataIdentifier) UnmarshalJSON(data []byte) error {
	var tagged struct {
		Text  *string `json:"text"`
		Email *string `json:"email"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	switch {
	case tagged.Text != nil:
		o.Kind, o.Value = IdentifierText, *tagged.Text
	case tagged.Email != nil:
		o.Kind, o.Value = IdentifierEmail, *tagged.Email
	default:
		return fmt.Errorf("offer metadata identifier must set text or email")
	}
	return nil
}

// OfferMetadata is the descriptive payload that a payee publishes and that
// gets bound into an invoice's description hash.
type OfferMetadata struct {
	ID         uuid.UUID
	Partition  string
	Text       string
	LongText   string
	Image      *OfferMetadataImage
	Identifier *OfferMetadataIdentifier
}

// metadataEntry is one `[tag, value]` pair of the LNURL metadata array.
type metadataEntry [2]string

// CanonicalJSON renders the byte-stable LNURL metadata array string
// described by the `[tag, value]` ordering: text/plain first, then
// text/long-desc, then image, then identifier. The same OfferMetadata
// always produces identical bytes.
func (m OfferMetadata) CanonicalJSON() (string, error) {
	entries := make([]metadataEntry, 0, 4)
	entries = append(entries, metadataEntry{"text/plain", m.Text})

	if m.LongText != "" {
		entries = append(entries, metadataEntry{"text/long-desc", m.LongText})
	}

	if m.Image != nil {
		encoded := base64.StdEncoding.EncodeToString(m.Image.Data)
		switch m.Image.Format {
		case ImageFormatPNG:
			entries = append(entries, metadataEntry{"image/png;base64", encoded})
		case ImageFormatJPEG:
			entries = append(entries, metadataEntry{"image/jpeg;base64", encoded})
		default:
			return "", fmt.Errorf("unknown offer metadata image format %q", m.Image.Format)
		}
	}

	if m.Identifier != nil {
		switch m.Identifier.Kind {
		case IdentifierText:
			entries = append(entries, metadataEntry{"text/identifier", m.Identifier.Value})
		case IdentifierEmail:
			entries = append(entries, metadataEntry{"text/email", m.Identifier.Value})
		default:
			return "", fmt.Errorf("unknown offer metadata identifier kind %q", m.Identifier.Kind)
		}
	}

	// encoding/json marshals a fixed-length array as a JSON array and
	// preserves field order within it, giving us the stable, ordered
	// array-of-pairs shape the LNURL spec requires without needing a
	// custom encoder.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entries); err != nil {
		return "", fmt.Errorf("serialising offer metadata: %w", err)
	}

	// json.Encoder.Encode appends a trailing newline; trim it so the hash
	// is taken over exactly the array bytes.
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// OfferRecord is a sendable amount band bound to a metadata id.
type OfferRecord struct {
	ID           uuid.UUID
	Partition    string
	MinSendable  uint64
	MaxSendable  uint64
	MetadataID   uuid.UUID
	Timestamp    time.Time
	Expires      *time.Time
}

// Offer is the resolution of an OfferRecord with its metadata materialised.
// It is derived on demand by the Offer Provider and never persisted.
type Offer struct {
	Partition         string
	ID                uuid.UUID
	MinSendable       uint64
	MaxSendable       uint64
	MetadataJSONString string
	MetadataJSONHash  [32]byte
	Timestamp         time.Time
	Expires           *time.Time
}

// IsExpired reports whether the offer is not yet valid or has expired,
// relative to now.
func (o Offer) IsExpired(now time.Time) bool {
	if now.Before(o.Timestamp) {
		return true
	}
	return o.Expires != nil && now.After(*o.Expires)
}

// NewOffer resolves a record and its metadata into an Offer, computing the
// canonical metadata JSON string and its SHA-256 hash.
func NewOffer(record OfferRecord, metadata OfferMetadata) (Offer, error) {
	metadataJSON, err := metadata.CanonicalJSON()
	if err != nil {
		return Offer{}, err
	}

	return Offer{
		Partition:           record.Partition,
		ID:                  record.ID,
		MinSendable:         record.MinSendable,
		MaxSendable:         record.MaxSendable,
		MetadataJSONString:  metadataJSON,
		MetadataJSONHash:    sha256.Sum256([]byte(metadataJSON)),
		Timestamp:           record.Timestamp,
		Expires:             record.Expires,
	}, nil
}
