package internal

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ColID             = "ID"
	ColAge            = "Age"
	ColIncome         = "Income"
	ColCreditScore    = "Credit_Score"
	ColDebtToIncome   = "Debt_to_Income_Ratio"
	ColEducationLevel = "Education_Level"
	ColLoanPurpose    = "Loan_Purpose"
	ColLoanAmount     = "Loan_Amount"
	ColRiskRating     = "Risk Rating"
)

// MonetaryColumns are rewritten by the currency normalizer, in this order.
var MonetaryColumns = []string{ColLoanAmount, ColIncome}

type Cell struct {
	Raw    string
	Amount *decimal.Decimal
}

// String renders the cell the way it is exported: normalized amounts as
// plain two-decimal numbers, everything else verbatim.
func (c Cell) String() string {
	if c.Amount != nil {
		return c.Amount.StringFixed(2)
	}
	return c.Raw
}

type Record struct {
	ID    int
	Cells map[string]Cell
}

// Clone copies the record so that transforms never share cell maps.
func (r Record) Clone() Record {
	cells := make(map[string]Cell, len(r.Cells))
	for k, v := range r.Cells {
		cells[k] = v
	}
	return Record{ID: r.ID, Cells: cells}
}

type Table struct {
	Columns []string
	Records []Record
}

func (t Table) Len() int { return len(t.Records) }

// HasColumn reports whether name is part of the header.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Value returns the exported text of a cell; ID is rendered from the record.
func (t Table) Value(rec Record, column string) string {
	if column == ColID {
		return strconv.Itoa(rec.ID)
	}
	return rec.Cells[column].String()
}

type Application struct {
	ID             int
	Age            int
	Income         decimal.Decimal
	CreditScore    int
	DebtToIncome   float64
	EducationLevel string
	LoanPurpose    string
	LoanAmount     decimal.Decimal
	RiskRating     float64
}

type RowFailure struct {
	Row    int
	ID     int
	Column string
	Value  string
	Reason string
}

type RunSummary struct {
	RunID     string
	Source    string
	Loaded    int
	Retained  int
	Failures  int
	CreatedAt time.Time
}

// InboxFile is a spreadsheet waiting in the inbox directory.
type InboxFile struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// MailMessage is a raw RFC 822 message pulled from a mailbox.
type MailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt time.Time
	Raw        []byte
}
