package service

import (
	"context"
	"net/url"
	"strconv"

	"github.com/target/ward-console/internal/apiclient"
	apperrors "github.com/target/ward-console/internal/errors"
)

// API is the request surface the screen services need from the hospital API client.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

var _ API = (*apiclient.Client)(nil)

// validation converts a request validation failure into an AppError shown inline on forms.
func validation(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Validation(err.Error())
}

// requireID rejects blank resource identifiers before any request is sent.
func requireID(kind, id string) error {
	if id == "" {
		return apperrors.ValidationField("id", kind+" id is required")
	}
	return nil
}

// pageQuery adds limit/offset when set.
func pageQuery(q url.Values, limit, offset int) url.Values {
	if q == nil {
		q = url.Values{}
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}
