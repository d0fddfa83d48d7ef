package detect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhatlang(t *testing.T) {
	d := NewWhatlang()
	tests := []struct {
		text string
		want string
	}{
		{"Das ist ein ganz normaler deutscher Satz über das Wetter in Berlin.", "de"},
		{"This is a perfectly ordinary English sentence about the weather today.", "en"},
		{"Ceci est une phrase française tout à fait ordinaire sur le temps qu'il fait.", "fr"},
	}
	for _, tt := range tests {
		got, err := d.Detect(context.Background(), tt.text)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.text)
	}

	_, err := d.Detect(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrUndetermined)
}

type failing struct{}

func (failing) Detect(context.Context, string) (string, error) {
	return "", errors.New("engine down")
}

func TestLanguageDegradesToUnknown(t *testing.T) {
	logger, hook := test.NewNullLogger()
	assert.Equal(t, Unknown, Language(context.Background(), failing{}, "x", logger))
	assert.Len(t, hook.Entries, 1)
}

func TestRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]map[string]any{{"language": "hu", "confidence": 97.0}})
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	d, err := New(KindLibreTranslate, srv.URL, logger)
	require.NoError(t, err)

	lang, err := d.Detect(context.Background(), "Jó napot kívánok")
	require.NoError(t, err)
	assert.Equal(t, "hu", lang)
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New("langid", "", nil)
	assert.Error(t, err)

	d, err := New("WhatLang", "", nil)
	require.NoError(t, err)
	assert.IsType(t, &Whatlang{}, d)
}
