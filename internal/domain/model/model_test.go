package model

import (
	"reflect"
	"testing"
)

func TestResolveEvidence(t *testing.T) {
	tests := []struct {
		name  string
		set   EvidenceSet
		want  Evidence
		count int
	}{
		{
			name:  "nil",
			set:   nil,
			want:  Evidence{},
			count: 0,
		},
		{
			name:  "одна квитанция и выписка",
			set:   SingleEvidence{Receipt: "https://s/foto.jpg", Statement: "https://s/pdf.pdf"},
			want:  Evidence{Receipts: []string{"https://s/foto.jpg"}, Statement: "https://s/pdf.pdf"},
			count: 2,
		},
		{
			name:  "только выписка",
			set:   SingleEvidence{Statement: "https://s/pdf.pdf"},
			want:  Evidence{Statement: "https://s/pdf.pdf"},
			count: 1,
		},
		{
			name:  "несколько квитанций, пустые пропускаются",
			set:   MultipleEvidence{Receipts: []string{"a", "", "b"}},
			want:  Evidence{Receipts: []string{"a", "b"}},
			count: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveEvidence(tt.set)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveEvidence() = %+v, ожидается %+v", got, tt.want)
			}
			if got.Count() != tt.count {
				t.Errorf("Count() = %d, ожидается %d", got.Count(), tt.count)
			}
		})
	}
}

func TestEvidenceURLs(t *testing.T) {
	e := Evidence{Receipts: []string{"r1", "r2"}, Statement: "s"}
	want := []string{"r1", "r2", "s"}
	if got := e.URLs(); !reflect.DeepEqual(got, want) {
		t.Errorf("URLs() = %v, ожидается %v", got, want)
	}
}

func TestOperationValid(t *testing.T) {
	if !OperationJT.Valid() || !OperationImile.Valid() {
		t.Error("операции из закрытого списка должны быть валидны")
	}
	if OperationAll.Valid() {
		t.Error("TODAS — значение фильтра, не операция")
	}
	if Operation("CORREIOS").Valid() {
		t.Error("неизвестная операция не должна быть валидна")
	}
}

func TestMoney(t *testing.T) {
	tests := []struct {
		m     Money
		str   string
		reais float64
	}{
		{0, "0.00", 0},
		{5, "0.05", 0.05},
		{123456, "1234.56", 1234.56},
		{-150, "-1.50", -1.5},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.str {
			t.Errorf("Money(%d).String() = %q, ожидается %q", tt.m, got, tt.str)
		}
		if got := tt.m.Reais(); got != tt.reais {
			t.Errorf("Money(%d).Reais() = %v, ожидается %v", tt.m, got, tt.reais)
		}
	}

	var c Claim
	if c.AmountOrZero() != 0 {
		t.Error("отсутствующая сумма должна считаться нулём")
	}
}
