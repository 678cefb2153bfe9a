// reader.go
package file

import (
	"DeliveryDashboard/src/config"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LoadOptions 原始数据读取参数
type LoadOptions struct {
	Delimiter rune              // csv 分隔符
	Encoding  string            // 源文件编码: utf-8 / gbk / latin1 / windows-1252
	Sheet     string            // xlsx 工作表名, 为空时取第一个工作表
	HeaderRow int               // xlsx 表头所在行(从0开始)
	Aliases   map[string]string // 源表头 -> 规范列名
}

// OptionsFromConfig 根据数据配置生成读取参数
func OptionsFromConfig(dc *config.DataConfig) LoadOptions {
	return LoadOptions{
		Delimiter: dc.DelimiterRune(),
		Encoding:  dc.Encoding,
		Sheet:     dc.SheetName,
		HeaderRow: dc.HeaderRow,
		Aliases:   dc.ColumnAliases(),
	}
}

// Load 读取配送数据文件, 按扩展名选择 csv 或 xlsx, 所有列均为字符串类型
// 参数:
//
//	path: 数据文件路径
//	opts: 读取参数
//
// 返回值:
//
//	dataframe.DataFrame: 原始数据表
//	error: 读取过程中的错误
func Load(path string, opts LoadOptions) (dataframe.DataFrame, error) {
	var (
		df  dataframe.DataFrame
		err error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		df, err = ReadXLSX(path, opts.Sheet, opts.HeaderRow)
	case ".csv", ".txt", ".tsv":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("打开数据文件失败: %w", err)
		}
		defer f.Close()
		df, err = ReadCSV(f, opts)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("不支持的数据文件类型: %s", path)
	}
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	return RenameColumns(df, opts.Aliases), nil
}

// ReadCSV 读取分隔符文本, 不做类型推断, 缺失标记原样保留
func ReadCSV(r io.Reader, opts LoadOptions) (dataframe.DataFrame, error) {
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}

	// 去掉 UTF-8 BOM, 否则第一列表头无法匹配
	data, err := io.ReadAll(r)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("读取csv内容失败: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("csv文件为空")
	}

	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithDelimiter(delimiter),
	)
	if df.Err != nil {
		// 只有表头时 gota 报 empty DataFrame, 按零行表处理
		if empty, ok := headerOnly(data, delimiter); ok {
			return empty, nil
		}
		return dataframe.DataFrame{}, fmt.Errorf("解析csv失败: %w", df.Err)
	}
	return df, nil
}

// headerOnly 内容只有一行表头时返回零行的字符串表
func headerOnly(data []byte, delimiter rune) (dataframe.DataFrame, bool) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	records, err := r.ReadAll()
	if err != nil || len(records) != 1 {
		return dataframe.DataFrame{}, false
	}
	cols := make([]series.Series, len(records[0]))
	for i, name := range records[0] {
		cols[i] = series.New([]string{}, series.String, name)
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return dataframe.DataFrame{}, false
	}
	return df, true
}

// ReadXLSX 使用 tealeg/xlsx 读取工作表并转换为字符串类型的 DataFrame
func ReadXLSX(filePath, sheetName string, headerRow int) (dataframe.DataFrame, error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}

	// 2. 获取工作表
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表: %s", filePath)
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 不存在", sheetName)
		}
		sheet = s
	}

	// 3. 转换为Gota DataFrame
	return convertSheetToDataFrame(sheet, headerRow)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet, headerRow int) (dataframe.DataFrame, error) {
	if headerRow < 0 || len(sheet.Rows) <= headerRow {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 缺少表头行 %d", sheet.Name, headerRow)
	}

	// 获取列名
	var headers []string
	for _, cell := range sheet.Rows[headerRow].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}
	// 去掉尾部空表头
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	if len(headers) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 表头为空", sheet.Name)
	}

	// 准备数据列
	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-headerRow-1)
	}

	// 填充数据(表头下一行开始), 缺少的单元格补空字符串
	for _, row := range sheet.Rows[headerRow+1:] {
		if row == nil || isBlankRow(row) {
			continue
		}
		for i := range headers {
			value := ""
			if i < len(row.Cells) && row.Cells[i] != nil {
				value = row.Cells[i].Value
			}
			columns[i] = append(columns[i], value)
		}
	}

	// 创建Series切片
	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	df := dataframe.New(seriesList...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("工作表转换DataFrame失败: %w", df.Err)
	}
	return df, nil
}

func isBlankRow(row *xlsx.Row) bool {
	for _, cell := range row.Cells {
		if cell != nil && strings.TrimSpace(cell.Value) != "" {
			return false
		}
	}
	return true
}

// RenameColumns 按别名表把源表头改为规范列名
func RenameColumns(df dataframe.DataFrame, aliases map[string]string) dataframe.DataFrame {
	for _, name := range df.Names() {
		target := strings.TrimSpace(name)
		if canonical, ok := aliases[target]; ok {
			target = canonical
		}
		if target != name {
			df = df.Rename(target, name)
		}
	}
	return df
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "utf-16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "gbk", "gb2312":
		return simplifiedchinese.GBK, nil
	case "gb18030":
		return simplifiedchinese.GB18030, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("不支持的编码: %s", name)
	}
}
