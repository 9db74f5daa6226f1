package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output форматирует результаты команд: списки jobs, конфигураций и
// webhook-доставок уходят таблицей в stdout или, с флагом --json,
// машиночитаемым JSON. Статусные сообщения всегда идут в stderr,
// чтобы не ломать pipe на stdout.
type Output struct {
	jsonMode bool
	data     io.Writer
	status   io.Writer
}

// NewOutput создаёт Output. jsonMode=true переключает данные на JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		data:     os.Stdout,
		status:   os.Stderr,
	}
}

// Print выводит сущности списком: таблица по умолчанию, JSON в
// json-режиме. jsonData — исходные структуры (Job, Configuration,
// WebhookDelivery), а не строки таблицы.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table печатает выровненную таблицу с подчёркнутыми заголовками.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.data, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	underline := make([]string, len(headers))
	for i, h := range headers {
		underline[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(underline, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON печатает значение с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.data)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success пишет статусное сообщение в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.status, msg)
}

// Error пишет сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.status, "Error: "+msg)
}
