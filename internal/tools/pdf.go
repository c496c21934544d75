package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/ledongthuc/pdf"
)

// PDFExtractInput parameters for pdf_extract tool
type PDFExtractInput struct {
	Path string `json:"path" jsonschema:"required,description=Path to the PDF file"`
}

// PDFExtractOutput result of pdf_extract tool
type PDFExtractOutput struct {
	Path  string `json:"path"`
	Pages int    `json:"pages"`
	Text  string `json:"text"`
}

type pdfExtractToolImpl struct {
	workspacePath string
}

func (t *pdfExtractToolImpl) execute(ctx context.Context, input *PDFExtractInput) (*PDFExtractOutput, error) {
	path := strings.TrimSpace(input.Path)
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := validatePath(path, t.workspacePath); err != nil {
		return nil, err
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	texts := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not lose the rest.
			texts = append(texts, fmt.Sprintf("[page %d: %v]", i, err))
			continue
		}
		texts = append(texts, strings.TrimSpace(text))
	}

	return &PDFExtractOutput{
		Path:  path,
		Pages: total,
		Text:  strings.Join(texts, "\n"),
	}, nil
}

// NewPDFExtractTool creates the pdf_extract tool
func NewPDFExtractTool(workspacePath string) (tool.InvokableTool, error) {
	impl := &pdfExtractToolImpl{workspacePath: workspacePath}
	return utils.InferTool("pdf_extract", "Extract the text content of a PDF file", impl.execute)
}
