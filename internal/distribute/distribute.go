package distribute

import (
	"errors"
	"fmt"
	"strings"

	"server/internal/domain"
	"server/internal/materialize"
	"server/pkg/zip"
)

// Attachment is a fully materialized file ready to hand to a client. It is
// rebuilt from the embedded data URI, so producing one never touches the
// network: the whole point of materialization is surviving the remote URL's
// expiry.
type Attachment struct {
	Filename string
	MIME     string
	Data     []byte
}

// Download packages the primary image of a result as a file attachment.
func Download(result domain.Result, filename string) (Attachment, error) {
	return fromDataURI(result.PrimaryImage, filename)
}

// DownloadComparison packages the before/after composite, when present.
func DownloadComparison(result domain.Result, filename string) (Attachment, error) {
	if !result.HasComparison() {
		return Attachment{}, errors.New("distribute: result has no comparison image")
	}
	return fromDataURI(result.ComparisonImage, filename)
}

// ArchiveResult bundles every image of a result into one zip attachment.
func ArchiveResult(result domain.Result, baseName string) (Attachment, error) {
	primary, err := Download(result, baseName+".png")
	if err != nil {
		return Attachment{}, err
	}
	entries := []zip.Entry{{Filename: primary.Filename, Data: primary.Data}}
	if result.HasComparison() {
		comparison, err := DownloadComparison(result, baseName+"-comparison.png")
		if err == nil {
			entries = append(entries, zip.Entry{Filename: comparison.Filename, Data: comparison.Data})
		}
	}
	archive := zip.Archive(entries)
	if len(archive) == 0 {
		return Attachment{}, errors.New("distribute: empty archive")
	}
	return Attachment{
		Filename: baseName + ".zip",
		MIME:     "application/zip",
		Data:     archive,
	}, nil
}

func fromDataURI(uri, filename string) (Attachment, error) {
	mime, data, err := materialize.DecodeDataURI(uri)
	if err != nil {
		return Attachment{}, fmt.Errorf("distribute: %w", err)
	}
	return Attachment{
		Filename: ensureExtension(filename, mime),
		MIME:     mime,
		Data:     data,
	}, nil
}

func ensureExtension(filename, mime string) string {
	var want string
	switch mime {
	case "image/png":
		want = ".png"
	case "image/jpeg":
		want = ".jpg"
	case "image/webp":
		want = ".webp"
	default:
		return filename
	}
	if strings.HasSuffix(strings.ToLower(filename), want) {
		return filename
	}
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		filename = filename[:idx]
	}
	return filename + want
}
