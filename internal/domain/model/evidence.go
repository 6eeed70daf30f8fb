package model

// EvidenceSet — набор ссылок на файлы-подтверждения заявки.
// Хранится в одной из двух форм:
//   - SingleEvidence: одна квитанция и одна выписка (исходная форма)
//   - MultipleEvidence: список квитанций и одна выписка
//
// Потребители работают с канонической формой Evidence через ResolveEvidence.
type EvidenceSet interface {
	resolve() Evidence
}

// SingleEvidence — одна фотография квитанции и PDF-выписка по тегу.
// Пустая строка означает отсутствие файла.
type SingleEvidence struct {
	Receipt   string
	Statement string
}

func (s SingleEvidence) resolve() Evidence {
	e := Evidence{Statement: s.Statement}
	if s.Receipt != "" {
		e.Receipts = []string{s.Receipt}
	}
	return e
}

// MultipleEvidence — несколько квитанций и PDF-выписка.
type MultipleEvidence struct {
	Receipts  []string
	Statement string
}

func (m MultipleEvidence) resolve() Evidence {
	e := Evidence{Statement: m.Statement}
	for _, r := range m.Receipts {
		if r != "" {
			e.Receipts = append(e.Receipts, r)
		}
	}
	return e
}

// Evidence — каноническая форма вложений заявки.
type Evidence struct {
	// Receipts — ссылки на квитанции в порядке загрузки.
	Receipts []string
	// Statement — ссылка на PDF-выписку; пусто, если не приложена.
	Statement string
}

// ResolveEvidence приводит набор вложений к канонической форме.
// nil даёт пустой Evidence.
func ResolveEvidence(set EvidenceSet) Evidence {
	if set == nil {
		return Evidence{}
	}
	return set.resolve()
}

// Count возвращает общее количество файлов.
func (e Evidence) Count() int {
	n := len(e.Receipts)
	if e.Statement != "" {
		n++
	}
	return n
}

// URLs возвращает все ссылки: сначала квитанции, затем выписку.
func (e Evidence) URLs() []string {
	urls := make([]string, 0, e.Count())
	urls = append(urls, e.Receipts...)
	if e.Statement != "" {
		urls = append(urls, e.Statement)
	}
	return urls
}
