// Пакет export — выгрузка отобранных заявок для финансового отдела:
// таблица XLSX и ZIP-архив файлов-подтверждений.
//
// Артефакты не сохраняются на сервере и пишутся прямо в поток ответа.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
)

// ErrEmptySelection — отбор пуст, выгружать нечего.
var ErrEmptySelection = errors.New("нет заявок для выгрузки")

// SheetName — имя единственного листа таблицы.
const SheetName = "Lançamentos Rivilog"

// Подписи для отсутствующих значений.
const (
	notAvailable     = "N/A"
	noOperationLabel = "NÃO INFORMADA"
)

// Location — часовой пояс дат в выгрузках (Бразилия, без летнего времени).
var Location = time.FixedZone("BRT", -3*60*60)

type column struct {
	header string
	width  float64
}

// columns — порядок и ширина колонок таблицы.
var columns = []column{
	{"DATA VIAGEM", 15},
	{"MOTORISTA", 30},
	{"PLACA", 12},
	{"OPERAÇÃO", 20},
	{"VALOR (R$)", 15},
	{"PROTOCOLO", 20},
	{"CONTATO", 20},
	{"E-MAIL", 30},
	{"ARQUIVOS", 10},
	{"DATA CADASTRO", 20},
}

// amountColumn — номер колонки суммы (с 1).
const amountColumn = 5

// SpreadsheetFileName возвращает имя файла таблицы на дату now.
func SpreadsheetFileName(now time.Time) string {
	return fmt.Sprintf("RIVILOG_FINANCEIRO_%s.xlsx", now.In(Location).Format(time.DateOnly))
}

// SpreadsheetRow — строка таблицы для одной заявки, в порядке колонок.
func SpreadsheetRow(c *model.Claim) []any {
	tripDate := notAvailable
	if !c.TripDate.IsZero() {
		tripDate = c.TripDate.Format("02/01/2006")
	}

	operation := strings.ToUpper(string(c.Operation))
	if operation == "" {
		operation = noOperationLabel
	}

	var amount any
	if c.Amount != nil {
		amount = c.Amount.Reais()
	}

	createdAt := notAvailable
	if !c.CreatedAt.IsZero() {
		createdAt = c.CreatedAt.In(Location).Format("02/01/2006 15:04:05")
	}

	return []any{
		tripDate,
		orNA(strings.ToUpper(c.DriverName)),
		orNA(strings.ToUpper(c.Plate)),
		operation,
		amount,
		orNA(c.Protocol),
		orNA(c.Phone),
		orNA(strings.ToLower(c.Email)),
		c.Files().Count(),
		createdAt,
	}
}

// WriteSpreadsheet пишет таблицу XLSX с одним листом.
// Пустой отбор — ErrEmptySelection, в w ничего не пишется.
func WriteSpreadsheet(w io.Writer, claims []*model.Claim) error {
	if len(claims) == 0 {
		return ErrEmptySelection
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("ошибка создания листа: %w", err)
	}

	headers := make([]any, len(columns))
	for i, col := range columns {
		headers[i] = col.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, col.width); err != nil {
			return fmt.Errorf("ошибка ширины колонки %s: %w", name, err)
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return fmt.Errorf("ошибка записи заголовка: %w", err)
	}

	for i, c := range claims {
		row := SpreadsheetRow(c)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("ошибка записи строки %d: %w", i+2, err)
		}
	}

	if err := applyStyles(f, len(claims)); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("ошибка сериализации XLSX: %w", err)
	}
	return nil
}

// applyStyles: жирный заголовок и денежный формат колонки суммы.
func applyStyles(f *excelize.File, rows int) error {
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	// Встроенный формат 4: #,##0.00
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(amountColumn, 2)
	last, _ := excelize.CoordinatesToCellName(amountColumn, rows+1)
	return f.SetCellStyle(SheetName, first, last, amountStyle)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
