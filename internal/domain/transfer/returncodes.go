package transfer

// ACH return-code reference table. Subset covering the codes Dwolla
// surfaces on transfer_returned events.
var returnCodeReasons = map[string]string{
	"R01": "Insufficient funds",
	"R02": "Bank account closed",
	"R03": "No bank account / unable to locate account",
	"R04": "Invalid bank account number",
	"R05": "Unauthorized debit to consumer account",
	"R06": "Returned per ODFI request",
	"R07": "Authorization revoked by customer",
	"R08": "Payment stopped",
	"R09": "Uncollected funds",
	"R10": "Customer advises not authorized",
	"R11": "Check truncation entry return",
	"R12": "Branch sold to another DFI",
	"R13": "Invalid ACH routing number",
	"R14": "Representative payee deceased",
	"R15": "Beneficiary or account holder deceased",
	"R16": "Account frozen",
	"R17": "File record edit criteria",
	"R20": "Non-transaction account",
	"R21": "Invalid company identification",
	"R22": "Invalid individual ID number",
	"R23": "Credit entry refused by receiver",
	"R24": "Duplicate entry",
	"R29": "Corporate customer advises not authorized",
}

// ReturnReason maps an ACH return code to a human-readable reason.
func ReturnReason(code string) string {
	if reason, ok := returnCodeReasons[code]; ok {
		return reason
	}
	return "Unknown return code: " + code
}

// KnownReturnCode reports whether the code exists in the reference table.
func KnownReturnCode(code string) bool {
	_, ok := returnCodeReasons[code]
	return ok
}
