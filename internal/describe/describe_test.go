// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package describe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docling-report/internal/captioncache"
	"github.com/pdiddy/docling-report/pkg/doctree"
	"github.com/pdiddy/docling-report/pkg/types"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{G: 0xff, A: 0xff})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// chatRequest is the subset of the chat completion request the fake
// endpoint inspects.
type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			ImageURL struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, reply string, got *chatRequest, calls *int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer ollama", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   got.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func apiOptions(url string) types.PictureDescriptionAPIOptions {
	return types.PictureDescriptionAPIOptions{
		URL:         url + "/v1/chat/completions",
		Model:       "llava",
		Temperature: 0.2,
		Prompt:      "Describe this image.",
		Timeout:     5 * time.Second,
	}
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:11434/v1/", BaseURL(types.DefaultVLMURL))
	assert.Equal(t, "http://localhost:11434/v1/", BaseURL("http://localhost:11434/v1/chat/completions/"))
	assert.Equal(t, "https://api.example.com/v1/", BaseURL("https://api.example.com/v1"))
}

func TestAPIDescriber(t *testing.T) {
	var got chatRequest
	var calls int32
	ts := chatServer(t, "A green pixel.", &got, &calls)

	d := NewAPIDescriber(apiOptions(ts.URL))
	img := pngBytes(t)
	text, err := d.Describe(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, "A green pixel.", text)
	assert.Equal(t, "llava", got.Model)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	msg := got.Messages[0]
	assert.Equal(t, "user", msg.Role)
	require.Len(t, msg.Content, 2)
	assert.Equal(t, "text", msg.Content[0].Type)
	assert.Equal(t, "Describe this image.", msg.Content[0].Text)
	assert.Equal(t, "image_url", msg.Content[1].Type)
	assert.Equal(t, doctree.DataURI("image/png", img), msg.Content[1].ImageURL.URL)
}

func TestAPIDescriber_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"model \"llava\" not found, try pulling it first"}}`))
	}))
	defer ts.Close()

	_, err := NewAPIDescriber(apiOptions(ts.URL)).Describe(context.Background(), pngBytes(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat completion with llava")
}

func TestAPIDescriber_ServerErrorIsNotRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"out of memory"}}`))
	}))
	defer ts.Close()

	_, err := NewAPIDescriber(apiOptions(ts.URL)).Describe(context.Background(), pngBytes(t))
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

type fakeDescriber struct {
	calls int
	text  string
	err   error
}

func (f *fakeDescriber) Describe(context.Context, []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestCachedDescriber(t *testing.T) {
	store, err := captioncache.Open(filepath.Join(t.TempDir(), "captions.db"))
	require.NoError(t, err)
	defer store.Close()

	log, _ := logtest.NewNullLogger()
	inner := &fakeDescriber{text: "a chart"}
	d := NewCachedDescriber(inner, store, "llava", "p", log)

	img := pngBytes(t)
	for i := 0; i < 3; i++ {
		text, err := d.Describe(context.Background(), img)
		require.NoError(t, err)
		assert.Equal(t, "a chart", text)
	}
	assert.Equal(t, 1, inner.calls)

	other := NewCachedDescriber(inner, store, "llava", "another prompt", log)
	_, err = other.Describe(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedDescriber_ErrorsAreNotCached(t *testing.T) {
	store, err := captioncache.Open(filepath.Join(t.TempDir(), "captions.db"))
	require.NoError(t, err)
	defer store.Close()

	log, _ := logtest.NewNullLogger()
	inner := &fakeDescriber{err: errors.New("timeout")}
	d := NewCachedDescriber(inner, store, "llava", "p", log)

	_, err = d.Describe(context.Background(), pngBytes(t))
	require.Error(t, err)
	n, err := store.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAnnotate(t *testing.T) {
	doc := doctree.New("doc")
	ref := &doctree.ImageRef{Mimetype: "image/png", URI: doctree.DataURI("image/png", pngBytes(t))}
	first := doc.AddPicture(ref, nil)
	noBitmap := doc.AddPicture(nil, nil)
	already := doc.AddPicture(ref, nil)
	already.Annotations = []doctree.Annotation{{Kind: doctree.AnnotationDescription, Text: "kept", Provenance: "granite"}}

	log, _ := logtest.NewNullLogger()
	inner := &fakeDescriber{text: "  A green pixel.\n"}
	n, err := Annotate(context.Background(), doc, inner, "Ollama (llava)", log)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, []doctree.Annotation{{
		Kind: doctree.AnnotationDescription, Text: "A green pixel.", Provenance: "Ollama (llava)",
	}}, first.Annotations)
	assert.Empty(t, noBitmap.Annotations)
	assert.Len(t, already.Annotations, 1)
}

func TestAnnotate_DescriberErrorAborts(t *testing.T) {
	doc := doctree.New("doc")
	ref := &doctree.ImageRef{Mimetype: "image/png", URI: doctree.DataURI("image/png", pngBytes(t))}
	doc.AddPicture(nil, nil)
	doc.AddPicture(ref, nil)
	doc.AddPicture(ref, nil)

	log, _ := logtest.NewNullLogger()
	inner := &fakeDescriber{err: errors.New("connection refused")}
	_, err := Annotate(context.Background(), doc, inner, "p", log)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "describing picture 2:"), err.Error())
	assert.Equal(t, 1, inner.calls)
}
