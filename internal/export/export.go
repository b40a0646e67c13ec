package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/quizcarry/internal/domain"
	"github.com/John-Robertt/quizcarry/internal/infra/fsx"
)

// SheetName 是导出的工作表名。
const SheetName = "Snapshot"

var headers = []string{
	"Question ID", "Type", "Answer #", "Text", "Answer ID", "Checked", "Actual Marks", "Max Marks",
}

// Workbook 把快照记录平铺为一张表：每个子答案一行；没有子答案的记录也占一行。
func Workbook(records []domain.Record) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(SheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("创建工作表失败：%w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("删除默认工作表失败：%w", err)
	}

	if err := setRow(f, 1, toAny(headers)); err != nil {
		_ = f.Close()
		return nil, err
	}

	row := 2
	for _, r := range records {
		var actual, max any = "", ""
		if s, ok := r.Score(); ok {
			actual, max = s.Actual, s.Max
		}

		if len(r.AnswerInfos) == 0 {
			if err := setRow(f, row, []any{r.ID, string(r.Type), "", "", "", "", actual, max}); err != nil {
				_ = f.Close()
				return nil, err
			}
			row++
			continue
		}
		for i, a := range r.AnswerInfos {
			values := []any{r.ID, string(r.Type), i + 1, deref(a.Text), deref(a.ID), deref(a.Checked), actual, max}
			if err := setRow(f, row, values); err != nil {
				_ = f.Close()
				return nil, err
			}
			row++
		}
	}
	return f, nil
}

// WriteXLSX 把快照记录写成 xlsx 文件（原子覆盖）。
func WriteXLSX(path string, records []domain.Record) error {
	f, err := Workbook(records)
	if err != nil {
		return err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("生成 xlsx 失败：%w", err)
	}
	return fsx.WriteFileAtomic(path, buf.Bytes())
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(SheetName, cell, &values)
}

func toAny(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

// deref 把缺失的字段写为空单元格。
func deref[T any](p *T) any {
	if p == nil {
		return ""
	}
	return *p
}
