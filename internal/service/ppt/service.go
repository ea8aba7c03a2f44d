package ppt

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
	"github.com/ChaseRain/pdf2deck/internal/service/gemini"
	"github.com/ChaseRain/pdf2deck/pkg/errors"
	"github.com/ChaseRain/pdf2deck/pkg/util"
)

// ContentType is the media type of a rendered deck.
const ContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// 16:9 slide size in EMU.
const (
	slideWidth  int64 = 12192000
	slideHeight int64 = 6858000
)

var (
	titleSlideTitle    = box{X: 457200, Y: 2057400, CX: 11277600, CY: 1371600}
	titleSlideSubtitle = box{X: 457200, Y: 3581400, CX: 11277600, CY: 762000}

	contentTitle      = box{X: 457200, Y: 304800, CX: 11277600, CY: 1066800}
	contentBody       = box{X: 457200, Y: 1524000, CX: 11277600, CY: 4876800}
	contentBodyNarrow = box{X: 457200, Y: 1524000, CX: 5943600, CY: 4876800}
	contentPicture    = box{X: 6629400, Y: 2026920, CX: 5105400, CY: 2871788}
)

// Deck is everything needed to render one presentation.
type Deck struct {
	Title    string
	Subtitle string
	Slides   []gemini.Slide
}

// File is a rendered .pptx.
type File struct {
	Name string
	Data []byte
}

type Service struct {
	filePrefix string
	logger     *logger.Logger
}

func New(filePrefix string, log *logger.Logger) *Service {
	if filePrefix == "" {
		filePrefix = "slide-deck"
	}
	return &Service{
		filePrefix: filePrefix,
		logger:     log,
	}
}

// Render builds the .pptx for deck: a title slide followed by one slide per
// outline entry. The output depends only on its inputs, so rendering the same
// deck twice yields identical bytes. at only determines the file name.
func (s *Service) Render(deck Deck, at time.Time) (*File, error) {
	pkg, media, err := buildPackage(deck)
	if err != nil {
		return nil, err
	}

	data, err := writePackage(pkg, media)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExport, "failed to write presentation")
	}

	name := util.TimestampedName(s.filePrefix, "pptx", at)
	s.logger.Info("presentation rendered",
		"file", name,
		"slides", len(pkg.Slides),
		"images", len(media),
		"bytes", len(data),
	)
	return &File{Name: name, Data: data}, nil
}

type box struct {
	X, Y, CX, CY int64
}

type textShape struct {
	ID         int
	Name       string
	Box        box
	Paragraphs []string
	Size       int
	Bold       bool
	Bullets    bool
	Align      string
	Anchor     string
}

type picture struct {
	ID    int
	Box   box
	Media string
}

type slidePart struct {
	Number  int
	Shapes  []textShape
	Picture *picture
	Notes   []string
}

type mediaType struct {
	Ext         string
	ContentType string
}

type mediaFile struct {
	Name string
	Data []byte
}

type packageData struct {
	Title      string
	Width      int64
	Height     int64
	Slides     []slidePart
	MediaTypes []mediaType
	NotesCount int
}

func buildPackage(deck Deck) (*packageData, []mediaFile, error) {
	pkg := &packageData{
		Title:  deck.Title,
		Width:  slideWidth,
		Height: slideHeight,
	}

	pkg.Slides = append(pkg.Slides, titleSlide(deck.Title, deck.Subtitle))

	var media []mediaFile
	types := map[string]string{}

	for i, slide := range deck.Slides {
		part := slidePart{Number: i + 2}
		body := contentBody

		if slide.ImageURL != "" {
			img, ext, contentType, err := decodeImage(slide.ImageURL)
			if err != nil {
				return nil, nil, errors.Wrap(err, errors.ErrCodeExport,
					fmt.Sprintf("slide %d has an unusable image", i+1))
			}
			name := fmt.Sprintf("image%d.%s", part.Number, ext)
			media = append(media, mediaFile{Name: name, Data: img})
			types[ext] = contentType
			part.Picture = &picture{ID: 4, Box: contentPicture, Media: name}
			body = contentBodyNarrow
		}

		part.Shapes = []textShape{
			{ID: 2, Name: "Title", Box: contentTitle, Paragraphs: []string{slide.Title},
				Size: 3200, Bold: true, Align: "l", Anchor: "t"},
			{ID: 3, Name: "Content", Box: body, Paragraphs: slide.Content,
				Size: 2000, Bullets: true, Align: "l", Anchor: "t"},
		}

		if notes := noteParagraphs(slide.SpeakerNotes); len(notes) > 0 {
			part.Notes = notes
			pkg.NotesCount++
		}

		pkg.Slides = append(pkg.Slides, part)
	}

	exts := make([]string, 0, len(types))
	for ext := range types {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		pkg.MediaTypes = append(pkg.MediaTypes, mediaType{Ext: ext, ContentType: types[ext]})
	}

	return pkg, media, nil
}

func titleSlide(title, subtitle string) slidePart {
	part := slidePart{
		Number: 1,
		Shapes: []textShape{
			{ID: 2, Name: "Title", Box: titleSlideTitle, Paragraphs: []string{title},
				Size: 4400, Bold: true, Align: "ctr", Anchor: "b"},
		},
	}
	if subtitle != "" {
		part.Shapes = append(part.Shapes, textShape{
			ID: 3, Name: "Subtitle", Box: titleSlideSubtitle, Paragraphs: []string{subtitle},
			Size: 2400, Align: "ctr", Anchor: "t",
		})
	}
	return part
}

// decodeImage returns the image bytes of a data: URL with the file extension
// and content type sniffed from the bytes themselves.
func decodeImage(dataURL string) ([]byte, string, string, error) {
	_, data, err := util.ParseDataURL(dataURL)
	if err != nil {
		return nil, "", "", err
	}
	if len(data) == 0 {
		return nil, "", "", fmt.Errorf("image is empty")
	}
	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, "", "", fmt.Errorf("unsupported image type %s", detected.String())
	}
	return data, strings.TrimPrefix(detected.Extension(), "."), detected.String(), nil
}

func noteParagraphs(notes string) []string {
	if strings.TrimSpace(notes) == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(notes, "\r\n", "\n"), "\n") {
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return out
}

type packagePart struct {
	name     string
	template string
	data     interface{}
}

func writePackage(pkg *packageData, media []mediaFile) ([]byte, error) {
	parts := []packagePart{
		{"[Content_Types].xml", "contentTypes", pkg},
		{"_rels/.rels", "rootRels", nil},
		{"docProps/core.xml", "core", pkg},
		{"docProps/app.xml", "app", pkg},
		{"ppt/presentation.xml", "presentation", pkg},
		{"ppt/_rels/presentation.xml.rels", "presentationRels", pkg},
		{"ppt/slideMasters/slideMaster1.xml", "master", nil},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", "masterRels", nil},
		{"ppt/slideLayouts/slideLayout1.xml", "layout", nil},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", "layoutRels", nil},
		{"ppt/notesMasters/notesMaster1.xml", "notesMaster", nil},
		{"ppt/notesMasters/_rels/notesMaster1.xml.rels", "notesMasterRels", nil},
		{"ppt/theme/theme1.xml", "theme", nil},
		{"ppt/theme/theme2.xml", "theme", nil},
	}
	for _, slide := range pkg.Slides {
		parts = append(parts,
			packagePart{fmt.Sprintf("ppt/slides/slide%d.xml", slide.Number), "slide", slide},
			packagePart{fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", slide.Number), "slideRels", slide},
		)
		if len(slide.Notes) > 0 {
			parts = append(parts,
				packagePart{fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", slide.Number), "notes", slide},
				packagePart{fmt.Sprintf("ppt/notesSlides/_rels/notesSlide%d.xml.rels", slide.Number), "notesRels", slide},
			)
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, p := range parts {
		w, err := createEntry(zw, p.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(xmlHeader)); err != nil {
			return nil, err
		}
		if err := templates.ExecuteTemplate(w, p.template, p.data); err != nil {
			return nil, fmt.Errorf("render %s: %w", p.name, err)
		}
	}

	for _, m := range media {
		w, err := createEntry(zw, "ppt/media/"+m.Name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(m.Data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// createEntry adds a file without a modification time so output is stable.
func createEntry(zw *zip.Writer, name string) (io.Writer, error) {
	return zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
}
