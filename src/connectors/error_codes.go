package connectors

import "fmt"

// Trade server return codes reported by the bridge.
const (
	RetcodeOK             = 0
	RetcodeRequote        = 10004
	RetcodeReject         = 10006
	RetcodeDone           = 10009
	RetcodeInvalidVolume  = 10014
	RetcodeInvalidStops   = 10016
	RetcodeMarketClosed   = 10018
	RetcodeNoMoney        = 10019
	RetcodePositionClosed = 10036
)

// RetcodeMessages maps trade server return codes to their names.
var RetcodeMessages = map[int]string{
	10004: "TRADE_RETCODE_REQUOTE",           // Requote
	10006: "TRADE_RETCODE_REJECT",            // Request rejected
	10007: "TRADE_RETCODE_CANCEL",            // Request canceled by trader
	10008: "TRADE_RETCODE_PLACED",            // Order placed
	10009: "TRADE_RETCODE_DONE",              // Request completed
	10010: "TRADE_RETCODE_DONE_PARTIAL",      // Only part of the request was completed
	10011: "TRADE_RETCODE_ERROR",             // Request processing error
	10012: "TRADE_RETCODE_TIMEOUT",           // Request canceled by timeout
	10013: "TRADE_RETCODE_INVALID",           // Invalid request
	10014: "TRADE_RETCODE_INVALID_VOLUME",    // Invalid volume in the request
	10015: "TRADE_RETCODE_INVALID_PRICE",     // Invalid price in the request
	10016: "TRADE_RETCODE_INVALID_STOPS",     // Invalid stops in the request
	10017: "TRADE_RETCODE_TRADE_DISABLED",    // Trade is disabled
	10018: "TRADE_RETCODE_MARKET_CLOSED",     // Market is closed
	10019: "TRADE_RETCODE_NO_MONEY",          // Not enough money
	10020: "TRADE_RETCODE_PRICE_CHANGED",     // Prices changed
	10021: "TRADE_RETCODE_PRICE_OFF",         // No quotes to process the request
	10024: "TRADE_RETCODE_TOO_MANY_REQUESTS", // Too frequent requests
	10026: "TRADE_RETCODE_SERVER_DISABLES_AT",
	10027: "TRADE_RETCODE_CLIENT_DISABLES_AT", // Autotrading disabled in the terminal
	10030: "TRADE_RETCODE_INVALID_FILL",       // Invalid order filling type
	10031: "TRADE_RETCODE_CONNECTION",         // No connection with the trade server
	10036: "TRADE_RETCODE_POSITION_CLOSED",    // Position already closed
}

// GetErrorMsg returns a human-readable message for a trade server code.
func GetErrorMsg(code int) string {
	if msg, ok := RetcodeMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_RETCODE_%d", code)
}

func isSuccess(code int) bool {
	return code == RetcodeOK || code == RetcodeDone
}
