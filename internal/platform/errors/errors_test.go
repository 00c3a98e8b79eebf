package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorWrapsAndUnwraps(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("disk full")
	err := Wrap(CodeStorage, "persist product", cause)
	if err.Error() != "persist product" {
		t.Fatalf("message = %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("outer: %w", New(CodeNotFound, "product missing"))
	if !IsCode(err, CodeNotFound) {
		t.Fatal("expected NOT_FOUND code through wrapping")
	}
	if IsCode(err, CodeAlreadyExists) {
		t.Fatal("unexpected ALREADY_EXISTS match")
	}
}

func TestGetCodeUnknownForPlainErrors(t *testing.T) {
	t.Parallel()

	if got := GetCode(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("code = %q, want UNKNOWN", got)
	}
}

func TestGetMetadata(t *testing.T) {
	t.Parallel()

	err := WithMetadata(CodeProductFeaturedLimit, "too many featured products",
		map[string]string{"limit": "6"})
	meta := GetMetadata(err)
	if meta["limit"] != "6" {
		t.Fatalf("metadata limit = %q, want 6", meta["limit"])
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{New(CodeNotFound, "missing"), http.StatusNotFound},
		{New(CodeAlreadyExists, "dup"), http.StatusConflict},
		{New(CodeAuthTokenExpired, "expired"), http.StatusUnauthorized},
		{New(CodeProductPriceNegative, "negative"), http.StatusBadRequest},
		{stderrors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("status for %v = %d, want %d", tc.err, got, tc.want)
		}
	}
}
