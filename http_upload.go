package defects

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

type uploadedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// readUpload returns the first file part named field, rejecting payloads
// larger than limit
func readUpload(c router.Context, field string, limit int64) (*uploadedFile, error) {
	mediaType, params, err := mime.ParseMediaType(c.Header("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return nil, NewValidationError("file is required")
	}

	reader := multipart.NewReader(bytes.NewReader(c.Body()), params["boundary"])
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, NewValidationError("file is required")
		}
		if err != nil {
			return nil, NewValidationError("invalid multipart body")
		}

		if part.FormName() != field || part.FileName() == "" {
			part.Close()
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, limit+1))
		part.Close()
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read uploaded file").
				WithCode(goerrors.CodeBadRequest)
		}

		if int64(len(data)) > limit {
			return nil, NewValidationError("file is too large")
		}

		return &uploadedFile{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
		}, nil
	}
}
