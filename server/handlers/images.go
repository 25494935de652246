package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rentfleet/aigw/server/completion"
	"golang.org/x/sync/errgroup"
)

// maxDecodeWorkers bounds concurrent base64 decoding per request.
const maxDecodeWorkers = 4

// ImageError reports an image that could not be turned into an attachment.
type ImageError struct {
	Index  int
	Reason string
	Err    error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("images[%d]: %s", e.Index, e.Reason)
}

func (e *ImageError) Unwrap() error { return e.Err }

// Field names the offending request field.
func (e *ImageError) Field() string {
	return fmt.Sprintf("images[%d]", e.Index)
}

// decodeImages turns base64 (or data URL) strings into attachments, keeping
// their order. The MIME type is sniffed from the decoded bytes; only images
// and PDFs are accepted.
func decodeImages(ctx context.Context, encoded []string) ([]completion.Attachment, error) {
	out := make([]completion.Attachment, len(encoded))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxDecodeWorkers)
	for i, s := range encoded {
		i, s := i, s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			att, err := decodeImage(s)
			if err != nil {
				err.Index = i
				return err
			}
			out[i] = att
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeImage(s string) (completion.Attachment, *ImageError) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return completion.Attachment{}, &ImageError{Reason: "malformed data URL"}
		}
		s = s[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return completion.Attachment{}, &ImageError{Reason: "invalid base64", Err: err}
	}
	if len(data) == 0 {
		return completion.Attachment{}, &ImageError{Reason: "empty image"}
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") && !mt.Is("application/pdf") {
		return completion.Attachment{}, &ImageError{Reason: "unsupported content type " + mt.String()}
	}
	return completion.Attachment{MIMEType: mt.String(), Data: data}, nil
}
