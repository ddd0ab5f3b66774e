package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"legal-rag/internal/models"
)

type ParserConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

const defaultPageNumber = 1

var (
	docxParagraphRe = regexp.MustCompile(`</w:p>`)
	docxTextRe      = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	docxTagRe       = regexp.MustCompile(`<[^>]+>`)
	pptxSlideRe     = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// LoadDocument reads a source document into pages. A missing file yields
// models.ErrNotFound.
func LoadDocument(filePath string) (models.Document, error) {
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Document{}, fmt.Errorf("%w: source document %s", models.ErrNotFound, filePath)
		}
		return models.Document{}, err
	}

	var (
		pages []models.Page
		err   error
	)
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		pages, err = parsePDF(filePath)
	case ".docx":
		pages, err = parseDOCX(filePath)
	case ".pptx":
		pages, err = parsePPTX(filePath)
	case ".xlsx":
		pages, err = parseXLSX(filePath)
	case ".md", ".markdown":
		pages, err = parseMarkdown(filePath)
	case ".txt":
		pages, err = parseText(filePath)
	default:
		return models.Document{}, fmt.Errorf("%w: unsupported file format: %s", models.ErrInvalidInput, ext)
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("parse %s: %w", filePath, err)
	}

	log.Debug().Str("source", filePath).Int("pages", len(pages)).Msg("Loaded document")
	return models.Document{Source: filePath, Pages: pages}, nil
}

func parsePDF(filePath string) ([]models.Page, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		pages = append(pages, models.Page{Number: i, Text: pageText})
	}
	return pages, nil
}

func parseDOCX(filePath string) ([]models.Page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := extractTextFromDocxXML(r.Editable().GetContent())
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	// DOCX has no page numbers
	return []models.Page{{Number: defaultPageNumber, Text: content}}, nil
}

// parsePPTX reads the text runs of every slide; the slide number is the
// page number.
func parsePPTX(filePath string) ([]models.Page, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	for _, file := range f.File {
		m := pptxSlideRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		slideText := extractTextFromSlideXML(string(data))
		if strings.TrimSpace(slideText) == "" {
			continue
		}
		pages = append(pages, models.Page{Number: num, Text: slideText})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

// parseXLSX renders each sheet as a tab separated page; statutes ship
// schedules and tables this way.
func parseXLSX(filePath string) ([]models.Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			log.Warn().Err(err).Str("sheet", sheetName).Msg("Skipping unreadable sheet")
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Sheet: %s\n", sheetName)
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
		if len(rows) == 0 {
			continue
		}
		pages = append(pages, models.Page{Number: sheetNum + 1, Text: b.String()})
	}
	return pages, nil
}

func parseMarkdown(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	content := markdownToText(data)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	return []models.Page{{Number: defaultPageNumber, Text: content}}, nil
}

func parseText(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []models.Page{{Number: defaultPageNumber, Text: string(data)}}, nil
}

// markdownToText walks the goldmark AST and keeps the text of every block,
// separating blocks by blank lines.
func markdownToText(source []byte) string {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				buf.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(collapseBlankLines(buf.String()))
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}

func extractTextFromDocxXML(xmlContent string) string {
	var b strings.Builder
	for _, para := range docxParagraphRe.Split(xmlContent, -1) {
		matches := docxTextRe.FindAllStringSubmatch(para, -1)
		if len(matches) == 0 {
			continue
		}
		for _, m := range matches {
			b.WriteString(docxTagRe.ReplaceAllString(m[1], ""))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func extractTextFromSlideXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return strings.TrimSpace(text.String())
}
