package translator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/polyglot/pkg/backend"
)

// scenarioEntries declares two mock backends: A is better and offers
// de->en, en->fr, fr->de and hu->de; B offers de->en, en->es and es->de.
func scenarioEntries() []backend.Entry {
	return []backend.Entry{
		{Name: "A", Kind: backend.KindMock, Grade: 1, Pairs: []string{"de-en", "en-fr", "fr-de", "hu-de"}},
		{Name: "B", Kind: backend.KindMock, Grade: 2, Pairs: []string{"de-en", "en-es", "es-de"}},
	}
}

type countingDetector struct {
	lang  string
	err   error
	calls atomic.Int32
}

func (d *countingDetector) Detect(context.Context, string) (string, error) {
	d.calls.Add(1)
	return d.lang, d.err
}

func nullLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newLoadedLocal(t *testing.T, det *countingDetector) *Local {
	t.Helper()
	cfg := LocalConfig{Backends: scenarioEntries(), Logger: nullLogger()}
	if det != nil {
		cfg.Detector = det
	}
	l, err := NewLocal(cfg)
	require.NoError(t, err)
	require.NoError(t, l.InitializeModels(context.Background(), true))
	return l
}

func TestLocalScenarios(t *testing.T) {
	l := newLoadedLocal(t, nil)
	ctx := context.Background()

	out, err := l.Translate(ctx, "X", "es", "de")
	require.NoError(t, err)
	assert.Equal(t, "X[A;de->en][B;en->es]", out)

	out, err = l.Translate(ctx, "X", "de", "en")
	require.NoError(t, err)
	assert.Equal(t, "X[A;en->fr][A;fr->de]", out)
}

func TestLocalSameLanguageReturnsText(t *testing.T) {
	l := newLoadedLocal(t, nil)
	out, err := l.Translate(context.Background(), "X", "de", "de")
	require.NoError(t, err)
	assert.Equal(t, "X", out)
}

func TestLocalNotReady(t *testing.T) {
	l, err := NewLocal(LocalConfig{Backends: scenarioEntries(), Logger: nullLogger()})
	require.NoError(t, err)
	ctx := context.Background()

	assert.False(t, l.ModelsLoaded(ctx))
	assert.True(t, l.ModelsDetermined())

	_, err = l.Translate(ctx, "X", "es", "de")
	var nr *NotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, "Models have not been loaded yet.", nr.Error())

	_, err = l.DirectTranslate(ctx, "A", "X", backend.LanguagePair{Source: "de", Target: "en"})
	assert.True(t, IsNotReady(err))

	langs, err := l.ListAvailableLanguages("en")
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "en", "es", "fr"}, langs, "the graph exists before the backends are loaded")

	require.NoError(t, l.InitializeModels(ctx, false))
	assert.True(t, l.ModelsLoaded(ctx))
}

func TestLocalUnsupportedInput(t *testing.T) {
	l := newLoadedLocal(t, nil)
	ctx := context.Background()

	_, err := l.Translate(ctx, "X", "xy", "de")
	assert.EqualError(t, err, "Language 'xy' is not supported.")
	assert.True(t, IsUnsupportedInput(err))

	_, err = l.Translate(ctx, "X", "de", "xy")
	assert.EqualError(t, err, "Language 'xy' is not supported.")

	_, err = l.Translate(ctx, "X", "hu", "de")
	assert.EqualError(t, err, "Translation 'de' to 'hu' not supported.")
	assert.True(t, IsUnsupportedInput(err))
}

func TestLocalDetectsSourceLanguageOnce(t *testing.T) {
	det := &countingDetector{lang: "de"}
	l := newLoadedLocal(t, det)

	out, err := l.Translate(context.Background(), "X", "es", "")
	require.NoError(t, err)
	assert.Equal(t, "X[A;de->en][B;en->es]", out)
	assert.Equal(t, int32(1), det.calls.Load())
}

func TestLocalDetectionFailureIsUnknown(t *testing.T) {
	det := &countingDetector{err: errors.New("no signal")}
	l := newLoadedLocal(t, det)

	_, err := l.Translate(context.Background(), "12345", "en", "")
	assert.EqualError(t, err, "Language 'unknown' is not supported.")
	assert.Equal(t, int32(1), det.calls.Load())
}

func TestLocalListModels(t *testing.T) {
	l := newLoadedLocal(t, nil)
	models, err := l.ListModels()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, models)

	langs, err := l.ListAvailableLanguages("hu")
	require.NoError(t, err)
	assert.Equal(t, []string{"hu"}, langs, "hu can be translated from but not into")

	langs, err = l.ListAvailableLanguages("zz")
	require.NoError(t, err)
	assert.Empty(t, langs)
}

func TestNewLocalRequiresBackends(t *testing.T) {
	_, err := NewLocal(LocalConfig{})
	assert.Error(t, err)
}
