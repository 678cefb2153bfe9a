package utils

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// EarthRadiusKm 平均地球半径(km), 与 python haversine 库一致
const EarthRadiusKm = 6371.0088

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Round 四舍五入保留 places 位小数, NaN/Inf 原样返回
func Round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// Haversine 计算两点之间的大圆距离(km)
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// Sheet 一个待写入的工作表
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]interface{}
}

// SheetFromFrame 把 DataFrame 转成工作表, NaN 写成空单元格
func SheetFromFrame(name string, df dataframe.DataFrame) Sheet {
	sheet := Sheet{Name: name, Header: df.Names()}
	cols := make([]series.Series, len(sheet.Header))
	for i, colName := range sheet.Header {
		cols[i] = df.Col(colName)
	}
	for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
		row := make([]interface{}, len(cols))
		for colIdx, col := range cols {
			row[colIdx] = CellValue(col.Val(rowIdx))
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

// CellValue 把 NaN/nil 统一成空字符串
func CellValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
	}
	return v
}

// NewWorkbook 按顺序生成多工作表的 excel 文件
func NewWorkbook(sheets []Sheet) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("没有需要导出的工作表")
	}

	f := excelize.NewFile()
	used := make(map[string]int)
	for i, sheet := range sheets {
		name := sheetName(sheet.Name, used)
		if i == 0 {
			f.SetSheetName(f.GetSheetName(0), name)
		} else if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("创建工作表 %s 失败: %w", name, err)
		}

		// 写入列名
		for colIdx, header := range sheet.Header {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, 1)
			if err := f.SetCellValue(name, cell, header); err != nil {
				f.Close()
				return nil, err
			}
		}

		// 写入数据
		for rowIdx, row := range sheet.Rows {
			for colIdx, val := range row {
				cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
				if err := f.SetCellValue(name, cell, CellValue(val)); err != nil {
					f.Close()
					return nil, err
				}
			}
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteWorkbook 把工作表写入 w(HTTP 下载)
func WriteWorkbook(w io.Writer, sheets []Sheet) error {
	f, err := NewWorkbook(sheets)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("写出Excel失败: %w", err)
	}
	return nil
}

// SaveToExcel 把工作表保存到文件
func SaveToExcel(filePath string, sheets []Sheet) error {
	f, err := NewWorkbook(sheets)
	if err != nil {
		return err
	}
	defer f.Close()

	// 保存文件
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

// sheetName excel 工作表名最长31个字符且不能包含 []:*?/\
func sheetName(name string, used map[string]int) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return ' '
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = "Sheet"
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}

	base := name
	for used[strings.ToLower(name)] > 0 {
		suffix := fmt.Sprintf("_%d", used[strings.ToLower(base)])
		r := []rune(base)
		if len(r)+len(suffix) > 31 {
			r = r[:31-len(suffix)]
		}
		name = string(r) + suffix
		used[strings.ToLower(base)]++
	}
	used[strings.ToLower(name)]++
	return name
}
