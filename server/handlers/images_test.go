package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImages(t *testing.T) {
	pdf := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	encoded := []string{
		base64.StdEncoding.EncodeToString(jpegHeader),
		"  " + base64.StdEncoding.EncodeToString(pdf) + "\n",
		"data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(pngHeader),
	}

	atts, err := decodeImages(context.Background(), encoded)
	require.NoError(t, err)
	require.Len(t, atts, 3)

	assert.Equal(t, "image/jpeg", atts[0].MIMEType)
	assert.Equal(t, "application/pdf", atts[1].MIMEType)
	assert.Equal(t, "image/png", atts[2].MIMEType, "sniffed type wins over the declared one")
}

func TestDecodeImagesReportsFirstBadIndex(t *testing.T) {
	encoded := []string{
		base64.StdEncoding.EncodeToString(pngHeader),
		base64.StdEncoding.EncodeToString(pngHeader),
		"",
	}

	_, err := decodeImages(context.Background(), encoded)

	var imgErr *ImageError
	require.True(t, errors.As(err, &imgErr))
	assert.Equal(t, 2, imgErr.Index)
	assert.Equal(t, "images[2]", imgErr.Field())
	assert.Equal(t, "images[2]: empty image", imgErr.Error())
}

func TestDecodeImagesHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := decodeImages(ctx, []string{base64.StdEncoding.EncodeToString(pngHeader)})
	assert.ErrorIs(t, err, context.Canceled)
}
