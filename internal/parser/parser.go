package parser

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"document-qa/internal/models"
)

// ExtractionError reports a document that could not be parsed at all
// (corrupt, wrong format, unreadable).
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("cannot extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ExtractPages reads a document and returns one PageUnit per page (or
// sheet) with non-empty text. Page numbers are 1-indexed in document
// order; formats without pages yield page 1. The source identifier on
// every unit is the file's base name.
func ExtractPages(filePath string) ([]models.PageUnit, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	source := filepath.Base(filePath)
	switch ext {
	case ".pdf":
		return extractPDF(filePath, source)
	case ".docx":
		return extractDOCX(filePath, source)
	case ".pptx":
		return extractPPTX(filePath, source)
	case ".xlsx":
		return extractXLSX(filePath, source)
	case ".ods":
		return extractODS(filePath, source)
	case ".md", ".markdown":
		return extractMarkdown(filePath, source)
	case ".txt":
		return extractText(filePath, source)
	default:
		return nil, &ExtractionError{Path: filePath, Err: fmt.Errorf("unsupported file format: %s", ext)}
	}
}

func extractPDF(filePath, source string) ([]models.PageUnit, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, &ExtractionError{Path: filePath, Err: err}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, &ExtractionError{Path: filePath, Err: err}
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, &ExtractionError{Path: filePath, Err: err}
	}

	var pages []models.PageUnit
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// a single undecodable page does not fail the document
			log.Warn().Err(err).Str("file", source).Int("page", i).Msg("Skipping unreadable page")
			continue
		}
		pages = appendPage(pages, pageText, i, source)
	}
	return pages, nil
}

func extractDOCX(filePath, source string) ([]models.PageUnit, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, &ExtractionError{Path: filePath, Err: err}
	}
	defer r.Close()

	content := extractTextFromXML(r.Editable().GetContent(), "w:t")
	return appendPage(nil, content, 1, source), nil
}

func extractPPTX(filePath, source string) ([]models.PageUnit, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, &ExtractionError{Path: filePath, Err: err}
	}
	defer f.Close()

	var pages []models.PageUnit
	slideNum := 0
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		slideNum++
		rc, err := file.Open()
		if err != nil {
			log.Warn().Err(err).Str("file", source).Int("slide", slideNum).Msg("Skipping unreadable slide")
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			log.Warn().Err(err).Str("file", source).Int("slide", slideNum).Msg("Skipping unreadable slide")
			continue
		}
		// slides carry their text in a:t runs
		pages = appendPage(pages, extractTextFromXML(string(data), "a:t"), slideNum, source)
	}
	return pages, nil
}

func extractXLSX(filePath, source string) ([]models.PageUnit, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, &ExtractionError{Path: filePath, Err: err}
	}

	var pages []models.PageUnit
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		pages = appendPage(pages, text.String(), sheetNum+1, source)
	}
	return pages, nil
}

func extractODS(filePath, source string) ([]models.PageUnit, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, &ExtractionError{Path: filePath, Err: err}
	}
	defer f.Close()

	var pages []models.PageUnit
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		pages = appendPage(pages, text.String(), sheetNum+1, source)
	}
	return pages, nil
}

func extractMarkdown(filePath, source string) ([]models.PageUnit, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &ExtractionError{Path: filePath, Err: err}
	}
	return appendPage(nil, markdownToText(data), 1, source), nil
}

func extractText(filePath, source string) ([]models.PageUnit, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &ExtractionError{Path: filePath, Err: err}
	}
	return appendPage(nil, string(data), 1, source), nil
}

// appendPage adds a PageUnit unless the text is only whitespace. A page
// with no extractable text never reaches normalization.
func appendPage(pages []models.PageUnit, text string, pageNumber int, source string) []models.PageUnit {
	if strings.TrimSpace(text) == "" {
		return pages
	}
	return append(pages, models.PageUnit{
		Text:       text,
		PageNumber: pageNumber,
		SourceID:   source,
	})
}

// extractTextFromXML pulls the character data out of every <tag>...</tag>
// run, e.g. w:t runs in a DOCX document body.
func extractTextFromXML(xmlContent, tag string) string {
	var text strings.Builder
	openTag := "<" + tag
	closeTag := "</" + tag + ">"
	rest := xmlContent
	for {
		start := strings.Index(rest, openTag)
		if start < 0 {
			break
		}
		rest = rest[start+len(openTag):]
		gt := strings.Index(rest, ">")
		if gt < 0 {
			break
		}
		// self-closing run has no text
		if strings.HasSuffix(rest[:gt], "/") {
			rest = rest[gt+1:]
			continue
		}
		rest = rest[gt+1:]
		end := strings.Index(rest, closeTag)
		if end < 0 {
			break
		}
		text.WriteString(rest[:end] + " ")
		rest = rest[end+len(closeTag):]
	}
	return text.String()
}
