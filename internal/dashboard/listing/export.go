package listing

import (
	"fmt"
	"io"
	"strconv"

	"emall/internal/format"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "采购项目"

var exportHeaders = []string{
	"项目标题", "项目编号", "采购单位", "地区", "预算控制金额", "预算(元)",
	"发布日期", "报价开始时间", "报价截止时间", "已选择", "已截止", "链接",
}

// Export пишет текущую страницу в xlsx.
func (c *Controller) Export(w io.Writer) error {
	page := c.Page()

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	expiredStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F9E7B2"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create expired style: %w", err)
	}

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(exportHeaders))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for r, row := range page.Rows {
		p := row.Procurement
		values := []any{
			p.ProjectTitle,
			p.ProjectNumber,
			p.PurchasingUnit,
			p.Region,
			p.TotalPriceControl,
			"",
			format.DisplayDate(p.PublishDate),
			format.DisplayDate(p.QuoteStartTime),
			format.DisplayDate(p.QuoteEndTime),
			yesNo(p.IsSelected),
			yesNo(row.Expired),
			p.URL,
		}
		if v, ok := format.ParsePrice(p.TotalPriceControl); ok {
			values[5] = v
		}

		line := strconv.Itoa(r + 2)
		if err := f.SetSheetRow(exportSheet, "A"+line, &values); err != nil {
			return fmt.Errorf("write row %s: %w", line, err)
		}
		if row.Expired {
			if err := f.SetCellStyle(exportSheet, "A"+line, lastCol+line, expiredStyle); err != nil {
				return fmt.Errorf("style row %s: %w", line, err)
			}
		}
	}

	if err := f.SetColWidth(exportSheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(exportSheet, "A", "A", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "是"
	}
	return "否"
}
