package vending

// 上位机事件关键字。下位机固件的既有协议，不能随意改动。
const (
	EventCoinInserted      = "COIN_INSERTED"      // COIN_INSERTED <peso>
	EventCoinWater         = "COIN_WATER"         // COIN_WATER <ml>
	EventCoinCharge        = "COIN_CHARGE"        // COIN_CHARGE <peso>
	EventCoinUnknown       = "COIN_UNKNOWN"       // COIN_UNKNOWN <pulses>
	EventCupDetected       = "CUP_DETECTED"
	EventCupRemoved        = "CUP_REMOVED"
	EventCupResumed        = "CUP_RESUMED"
	EventCountdown         = "COUNTDOWN"          // COUNTDOWN <n>
	EventCountdownEnd      = "COUNTDOWN_END"
	EventCountdownCancel   = "COUNTDOWN_CANCELLED"
	EventDispenseStart     = "DISPENSE_START"
	EventDispenseTarget    = "DISPENSE_TARGET"    // DISPENSE_TARGET <ml>
	EventDispenseProgress  = "DISPENSE_PROGRESS"  // DISPENSE_PROGRESS ml=<x> remaining=<y>
	EventDispenseDone      = "DISPENSE_DONE"      // DISPENSE_DONE <ml>
	EventCreditLeft        = "CREDIT_LEFT"        // CREDIT_LEFT <ml>
	EventAddedCredit       = "ADDED_CREDIT"       // ADDED_CREDIT <total_ml>
	EventManualStart       = "MANUAL_START"
	EventManualStop        = "MANUAL_STOP"
	EventMode              = "MODE:"              // MODE: <WATER|CHARGE>
	EventSystemReset       = "SYSTEM_RESET"
	EventError             = "ERROR"              // ERROR: <message>

	EventCalPrompt  = "CAL_PROMPT"  // CAL_PROMPT <peso>
	EventCalCoin    = "CAL_COIN"    // CAL_COIN <peso> <pulses>
	EventCalTimeout = "CAL_TIMEOUT" // CAL_TIMEOUT <peso>
	EventCalDone    = "CAL_DONE"    // CAL_DONE 1=<a> 5=<b> 10=<c>

	EventFlowCalStart = "FLOWCAL_START"
	EventFlowCalDone  = "FLOWCAL_DONE" // FLOWCAL_DONE <pulses_per_liter>
)
