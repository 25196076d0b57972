package export

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	FileName  = "questions_and_answers.xlsx"
	SheetName = "Q&A"

	minColumnWidth  = 10
	maxAnswerWidth  = 100
	headerFillColor = "D9D9D9"
	questionHeader  = "Question"
	answerHeader    = "Answer"
	questionColumn  = "A"
	answerColumn    = "B"
)

type QAPair struct {
	Question string
	Answer   string
}

// ColumnWidths returns the question and answer column widths in characters.
// The question column grows with its longest value; the answer column is
// capped at 100.
func ColumnWidths(pairs []QAPair) (question, answer int) {
	qLen := utf8.RuneCountInString(questionHeader)
	aLen := utf8.RuneCountInString(answerHeader)
	for _, p := range pairs {
		qLen = max(qLen, utf8.RuneCountInString(p.Question))
		aLen = max(aLen, utf8.RuneCountInString(p.Answer))
	}
	return max(minColumnWidth, qLen), max(minColumnWidth, min(aLen, maxAnswerWidth))
}

// WriteQA renders pairs as a two column workbook into w.
func WriteQA(w io.Writer, pairs []QAPair) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet failed: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFillColor}},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("create header style failed: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("create cell style failed: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &[]any{questionHeader, answerHeader}); err != nil {
		return fmt.Errorf("write header failed: %w", err)
	}
	for i, p := range pairs {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(SheetName, cell, &[]any{p.Question, p.Answer}); err != nil {
			return fmt.Errorf("write row %d failed: %w", i+2, err)
		}
	}

	lastRow := len(pairs) + 1
	if err := f.SetCellStyle(SheetName, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("style header failed: %w", err)
	}
	if lastRow > 1 {
		if err := f.SetCellStyle(SheetName, "A2", fmt.Sprintf("B%d", lastRow), cellStyle); err != nil {
			return fmt.Errorf("style cells failed: %w", err)
		}
	}

	qWidth, aWidth := ColumnWidths(pairs)
	if err := f.SetColWidth(SheetName, questionColumn, questionColumn, float64(min(qWidth, excelize.MaxColumnWidth))); err != nil {
		return fmt.Errorf("set question width failed: %w", err)
	}
	if err := f.SetColWidth(SheetName, answerColumn, answerColumn, float64(aWidth)); err != nil {
		return fmt.Errorf("set answer width failed: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook failed: %w", err)
	}
	return nil
}
