package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"macro-snap/internal/core/ai/provider"
	"macro-snap/internal/core/ai/service"
	imagesvc "macro-snap/internal/core/image"
	"macro-snap/internal/core/nutrition"
	"macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"
	"macro-snap/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAI struct {
	content string
	err     error
	last    *provider.Request
}

func (f *fakeAI) ProcessRequest(ctx context.Context, req *provider.Request) (*service.Response, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &service.Response{Content: f.content, Model: "fake-model"}, nil
}

type fakeArchive struct {
	err error
	ids []string
}

func (f *fakeArchive) PutJPEG(ctx context.Context, entryID string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.ids = append(f.ids, entryID)
	return "s3://meals/" + entryID + ".jpg", nil
}

func testImage(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x * 10), B: uint8(y * 10), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newImages() *imagesvc.Service {
	return imagesvc.NewService(&config.ImageConfig{
		MaxSizeBytes: 1 << 20,
		MaxWidth:     64,
		MaxHeight:    64,
		JPEGQuality:  80,
	})
}

func newStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "entries.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

const friedRice = `{"description":"Fried Rice","calories":650,"protein":20,"carbohydrates":80,"fat":25}`

func TestAnalyzeImageJSON(t *testing.T) {
	ai := &fakeAI{content: "```json\n" + friedRice + "\n```"}
	svc := NewService(ai, newImages(), PromptStyleJSON)

	res, err := svc.AnalyzeImage(context.Background(), AnalyzeRequest{
		Image:           testImage(t),
		DescriptionHint: "less oil",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, "Fried Rice", res.Nutrition.FoodName)
	assert.Equal(t, 650.0, res.Nutrition.Calories)
	assert.Equal(t, nutrition.SourceSimpleJSON, res.Nutrition.Source)
	assert.Equal(t, "fake-model", res.Model)
	assert.Empty(t, res.EntryID)

	require.NotNil(t, ai.last)
	assert.Equal(t, jsonSystemPrompt, ai.last.SystemPrompt)
	assert.True(t, strings.HasSuffix(ai.last.Prompt, "User context: less oil"))
	assert.True(t, strings.HasPrefix(ai.last.ImageURL, "data:image/jpeg;base64,"))
}

func TestAnalyzeImageTextStyle(t *testing.T) {
	ai := &fakeAI{content: "1. Description: Pad Thai with shrimp.\n2. Estimated Calories: 720 kcal\n3. Macro Breakdown:\n    * Protein: 28g\n    * Carbohydrates: 85g\n    * Fats: 26g\n4. Considerations: Oil estimated."}
	svc := NewService(ai, newImages(), PromptStyleText)

	res, err := svc.AnalyzeImage(context.Background(), AnalyzeRequest{Image: testImage(t), RequestID: "req-1"})
	require.NoError(t, err)

	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, textSystemPrompt, ai.last.SystemPrompt)
	assert.Equal(t, nutrition.SourceText, res.Nutrition.Source)
	assert.Equal(t, 720.0, res.Nutrition.Calories)
	assert.Equal(t, 26.0, res.Nutrition.Fat)
}

func TestAnalyzeImageUnparseableFallsBack(t *testing.T) {
	svc := NewService(&fakeAI{content: "I cannot identify this image."}, newImages(), PromptStyleJSON)

	res, err := svc.AnalyzeImage(context.Background(), AnalyzeRequest{Image: testImage(t)})
	require.NoError(t, err)
	assert.Equal(t, nutrition.FallbackRecord(), res.Nutrition)
}

func TestAnalyzeImageErrors(t *testing.T) {
	svc := NewService(&fakeAI{content: friedRice}, newImages(), PromptStyleJSON)

	_, err := svc.AnalyzeImage(context.Background(), AnalyzeRequest{})
	assert.True(t, errors.Is(err, common.ErrMissingImage))

	_, err = svc.AnalyzeImage(context.Background(), AnalyzeRequest{Image: testImage(t), Save: true})
	assert.True(t, errors.Is(err, common.ErrStorageDisabled))

	_, err = svc.AnalyzeImage(context.Background(), AnalyzeRequest{Image: "data:image/png;base64,!!!"})
	assert.Error(t, err)

	failing := NewService(&fakeAI{err: common.ErrAIServiceError}, newImages(), PromptStyleJSON)
	_, err = failing.AnalyzeImage(context.Background(), AnalyzeRequest{Image: testImage(t)})
	assert.True(t, errors.Is(err, common.ErrAIServiceError))
}

func TestAnalyzeImageSaves(t *testing.T) {
	store := newStore(t)
	archive := &fakeArchive{}
	svc := NewService(&fakeAI{content: friedRice}, newImages(), PromptStyleJSON,
		WithStore(store), WithImageArchive(archive))
	ctx := context.Background()

	res, err := svc.AnalyzeImage(ctx, AnalyzeRequest{Image: testImage(t), Save: true, UserID: "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, res.EntryID)
	assert.Equal(t, []string{res.EntryID}, archive.ids)
	assert.Equal(t, "s3://meals/"+res.EntryID+".jpg", res.ImageURI)

	entry, err := svc.GetEntry(ctx, res.EntryID)
	require.NoError(t, err)
	assert.Equal(t, "u1", entry.UserID)
	assert.Equal(t, friedRice, entry.RawText)
	assert.Equal(t, res.Nutrition, entry.Nutrition)

	entries, err := svc.ListEntries(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, svc.DeleteEntry(ctx, res.EntryID))
	_, err = svc.GetEntry(ctx, res.EntryID)
	assert.True(t, errors.Is(err, common.ErrEntryNotFound))
}

func TestAnalyzeImageArchiveFailureStillSaves(t *testing.T) {
	svc := NewService(&fakeAI{content: friedRice}, newImages(), PromptStyleJSON,
		WithStore(newStore(t)), WithImageArchive(&fakeArchive{err: errors.New("denied")}))

	res, err := svc.AnalyzeImage(context.Background(), AnalyzeRequest{Image: testImage(t), Save: true})
	require.NoError(t, err)
	assert.NotEmpty(t, res.EntryID)
	assert.Empty(t, res.ImageURI)
}

func TestEntriesWithoutStorage(t *testing.T) {
	svc := NewService(&fakeAI{}, newImages(), PromptStyleJSON)
	ctx := context.Background()

	assert.False(t, svc.StorageEnabled())
	_, err := svc.ListEntries(ctx, "", 0)
	assert.True(t, errors.Is(err, common.ErrStorageDisabled))
	_, err = svc.GetEntry(ctx, "x")
	assert.True(t, errors.Is(err, common.ErrStorageDisabled))
	assert.True(t, errors.Is(svc.DeleteEntry(ctx, "x"), common.ErrStorageDisabled))
}

func TestNormalizeText(t *testing.T) {
	svc := NewService(&fakeAI{}, newImages(), "")

	rec := svc.NormalizeText(friedRice, nutrition.ShapeAuto)
	assert.Equal(t, 650.0, rec.Calories)

	rec = svc.NormalizeText("Calories: 300 kcal\nProtein: 10g", nutrition.ShapeText)
	assert.Equal(t, nutrition.SourceText, rec.Source)
	assert.Equal(t, 300.0, rec.Calories)
}

func TestPromptStyle(t *testing.T) {
	assert.Equal(t, nutrition.ShapeSimple, PromptStyleJSON.ExpectedShape())
	assert.Equal(t, nutrition.ShapeText, PromptStyleText.ExpectedShape())
	assert.Equal(t, jsonUserPrompt, PromptStyleJSON.UserPrompt("   "))
}
