package models

import "strings"

// ReceiptFields are the transfer details read off a payment-proof image by the
// extraction model. Pointer fields stay nil when the model could not read a
// value. Amount is in the smallest currency unit.
type ReceiptFields struct {
	TransferFromWhom      *string `json:"transferFromWhom"`
	TransferToWhom        *string `json:"transferToWhom"`
	TransferFromAccountNo *string `json:"transferFromAccountNo"`
	TransferToAccountNo   *string `json:"transferToAccountNo"`
	TransferDateTime      *string `json:"transferDateTime"`
	Amount                *int64  `json:"amount"`
	TransactionID         *string `json:"transactionID"`
	TransferReceiptMemo   *string `json:"transferReceiptMemo"`
}

// PaymentRecord is the persisted form of a processed submission.
type PaymentRecord struct {
	FileName       string
	SubmissionTime string
	CondoName      string
	RoomNumber     string
	MonthsCovered  string
	FileLink       string
	Fields         ReceiptFields
}

// NewPaymentRecord builds the persisted record for a staged submission row.
func NewPaymentRecord(row SubmissionRow, fields ReceiptFields) PaymentRecord {
	return PaymentRecord{
		FileName:       row.FileName,
		SubmissionTime: row.SubmissionTime,
		CondoName:      row.CondoName,
		RoomNumber:     row.RoomNumber,
		MonthsCovered:  row.MonthsCovered,
		FileLink:       strings.Join(row.SourceRefs, ";"),
		Fields:         fields,
	}
}
