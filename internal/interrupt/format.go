package interrupt

import "fmt"

// String renders a one-line summary in the bit-name vocabulary of the
// framer's interrupt status registers, set-bits only, for log lines.
func (s Status) String() string {
	out := fmt.Sprintf("CH%d BISR", s.ChannelIndex)
	out += flagList(map[string]bool{
		"LBCODE": s.BISR.LBCODE,
		"RXCLOS": s.BISR.RxClkLOS,
		"ONESEC": s.BISR.ONESEC,
		"HDLC":   s.BISR.HDLC,
		"SLIP":   s.BISR.SLIP,
		"ALRM":   s.BISR.ALARM,
		"T1FRM":  s.BISR.T1FRAME,
	})
	if s.Slip != nil {
		out += " SBISR" + flagList(map[string]bool{
			"TSBF": s.Slip.SBISR.TxSBFull,
			"TSBE": s.Slip.SBISR.TxSBEmpt,
			"TSBS": s.Slip.SBISR.TxSBSlip,
			"RSBF": s.Slip.SBISR.RxSBFull,
			"RSBE": s.Slip.SBISR.RxSBEmpt,
			"RSBS": s.Slip.SBISR.RxSBSlip,
		})
	}
	if s.Alarm != nil {
		out += " AEISR" + flagList(map[string]bool{
			"RxOOF": s.Alarm.AEISR.RxOOFState,
			"RxAIS": s.Alarm.AEISR.RxAISState,
			"RxYEL": s.Alarm.AEISR.RxYELState,
			"LOS":   s.Alarm.AEISR.LOSState,
		})
	}
	if s.T1Frame != nil {
		out += " FISR" + flagList(map[string]bool{
			"DS0Chg": s.T1Frame.FISR.DS0Change,
			"SIG":    s.T1Frame.FISR.SIG,
			"COFA":   s.T1Frame.FISR.COFA,
			"OOF":    s.T1Frame.FISR.OOFStatus,
		})
	}
	return out
}

func flagList(flags map[string]bool) string {
	out := ""
	for _, name := range []string{"LBCODE", "RXCLOS", "ONESEC", "HDLC", "SLIP", "ALRM", "T1FRM",
		"TSBF", "TSBE", "TSBS", "RSBF", "RSBE", "RSBS",
		"RxOOF", "RxAIS", "RxYEL", "LOS",
		"DS0Chg", "SIG", "COFA", "OOF"} {
		if v, ok := flags[name]; ok && v {
			out += " " + name
		}
	}
	return out
}
