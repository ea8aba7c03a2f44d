package ppt

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
	"github.com/ChaseRain/pdf2deck/internal/service/gemini"
	"github.com/ChaseRain/pdf2deck/pkg/errors"
	"github.com/ChaseRain/pdf2deck/pkg/util"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func testDeck() Deck {
	return Deck{
		Title:    "Quarterly Review",
		Subtitle: "report.pdf",
		Slides: []gemini.Slide{
			{Title: "Revenue & Growth", Content: []string{"Up 12%", "Costs <flat>"}, SpeakerNotes: "Mention Q3.\nThank the team.",
				ImageURL: util.DataURL("image/png", pngBytes)},
			{Title: "Risks", Content: []string{"Supply chain"}},
		},
	}
}

func openPackage(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		raw, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = string(raw)
	}
	return files
}

func TestRenderPackageStructure(t *testing.T) {
	s := New("deck", logger.NewNop())
	file, err := s.Render(testDeck(), time.UnixMilli(1700000000123))
	require.NoError(t, err)
	assert.Equal(t, "deck-1700000000123.pptx", file.Name)

	files := openPackage(t, file.Data)
	for _, name := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"ppt/presentation.xml",
		"ppt/_rels/presentation.xml.rels",
		"ppt/slideMasters/slideMaster1.xml",
		"ppt/slideLayouts/slideLayout1.xml",
		"ppt/theme/theme1.xml",
		"ppt/notesMasters/notesMaster1.xml",
		"ppt/slides/slide1.xml",
		"ppt/slides/slide2.xml",
		"ppt/slides/slide3.xml",
		"ppt/notesSlides/notesSlide2.xml",
		"ppt/media/image2.png",
	} {
		assert.Contains(t, files, name)
	}
	assert.NotContains(t, files, "ppt/slides/slide4.xml")
	assert.NotContains(t, files, "ppt/notesSlides/notesSlide1.xml")
	assert.NotContains(t, files, "ppt/notesSlides/notesSlide3.xml")

	assert.Equal(t, string(pngBytes), files["ppt/media/image2.png"])
	assert.Contains(t, files["[Content_Types].xml"], `Extension="png" ContentType="image/png"`)
	assert.Equal(t, 3, strings.Count(files["ppt/presentation.xml"], "<p:sldId "))
}

func TestRenderPartsAreWellFormed(t *testing.T) {
	file, err := New("deck", logger.NewNop()).Render(testDeck(), time.Now())
	require.NoError(t, err)

	for name, content := range openPackage(t, file.Data) {
		if !strings.HasSuffix(name, ".xml") && !strings.HasSuffix(name, ".rels") {
			continue
		}
		dec := xml.NewDecoder(strings.NewReader(content))
		for {
			_, err := dec.Token()
			if err == io.EOF {
				break
			}
			require.NoError(t, err, name)
		}
	}
}

func TestRenderSlideContent(t *testing.T) {
	file, err := New("deck", logger.NewNop()).Render(testDeck(), time.Now())
	require.NoError(t, err)
	files := openPackage(t, file.Data)

	title := files["ppt/slides/slide1.xml"]
	assert.Contains(t, title, "<a:t>Quarterly Review</a:t>")
	assert.Contains(t, title, "<a:t>report.pdf</a:t>")

	first := files["ppt/slides/slide2.xml"]
	assert.Contains(t, first, "<a:t>Revenue &amp; Growth</a:t>")
	assert.Contains(t, first, "<a:t>Up 12%</a:t>")
	assert.Contains(t, first, "<a:t>Costs &lt;flat&gt;</a:t>")
	assert.Contains(t, first, `<a:blip r:embed="rId2"/>`)
	assert.Contains(t, files["ppt/slides/_rels/slide2.xml.rels"], "../media/image2.png")
	assert.Contains(t, files["ppt/slides/_rels/slide2.xml.rels"], "../notesSlides/notesSlide2.xml")

	notes := files["ppt/notesSlides/notesSlide2.xml"]
	assert.Contains(t, notes, "<a:t>Mention Q3.</a:t>")
	assert.Contains(t, notes, "<a:t>Thank the team.</a:t>")

	second := files["ppt/slides/slide3.xml"]
	assert.Contains(t, second, "<a:t>Supply chain</a:t>")
	assert.NotContains(t, second, "<p:pic>")
	assert.NotContains(t, files["ppt/slides/_rels/slide3.xml.rels"], "notesSlide")
}

func TestRenderIsDeterministic(t *testing.T) {
	s := New("deck", logger.NewNop())
	at := time.UnixMilli(42)

	a, err := s.Render(testDeck(), at)
	require.NoError(t, err)
	b, err := s.Render(testDeck(), at)
	require.NoError(t, err)

	assert.Equal(t, a.Name, b.Name)
	assert.True(t, bytes.Equal(a.Data, b.Data))
}

func TestRenderWithoutSlides(t *testing.T) {
	file, err := New("", logger.NewNop()).Render(Deck{Title: "Empty"}, time.UnixMilli(1))
	require.NoError(t, err)
	assert.Equal(t, "slide-deck-1.pptx", file.Name)

	files := openPackage(t, file.Data)
	assert.Contains(t, files, "ppt/slides/slide1.xml")
	assert.NotContains(t, files, "ppt/slides/slide2.xml")
	assert.NotContains(t, files["ppt/slides/slide1.xml"], "Subtitle")
}

func TestRenderRejectsUnusableImages(t *testing.T) {
	tests := []struct {
		name     string
		imageURL string
	}{
		{"not a data url", "https://example.com/a.png"},
		{"bad base64", "data:image/png;base64,***"},
		{"not an image", util.DataURL("image/png", []byte("%PDF-1.4 hello"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deck := Deck{Title: "T", Slides: []gemini.Slide{{Title: "A", Content: []string{"x"}, ImageURL: tt.imageURL}}}
			file, err := New("deck", logger.NewNop()).Render(deck, time.Now())
			assert.Nil(t, file)
			assert.True(t, errors.Is(err, errors.ErrCodeExport))
		})
	}
}
