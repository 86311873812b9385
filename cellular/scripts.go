package cellular

import (
	"strconv"

	"github.com/go-modem/cellular/chat"
)

// okMatch matches a literal "OK" status line with no callback.
var okMatch = chat.Match{Prefix: "OK"}

// abortMatches is the abort-line list shared by every script (spec.md §6:
// "ERROR" always aborts).
var abortMatches = []chat.Match{{Prefix: "ERROR"}}

// connectAbortMatches extends abortMatches with the dial-specific abort
// lines from spec.md §6.
var connectAbortMatches = []chat.Match{
	{Prefix: "ERROR"},
	{Prefix: "BUSY"},
	{Prefix: "NO ANSWER"},
	{Prefix: "NO CARRIER"},
	{Prefix: "NO DIALTONE"},
}

func (m *Modem) onResult(result chat.ScriptResult) {
	if result == chat.ScriptSuccess {
		m.queue.Delegate(int(eventScriptSuccess))
	} else {
		m.queue.Delegate(int(eventScriptFailed))
	}
}

// initScript is the reference driver's init_chat_script: four bare AT pokes
// to flush any pending state, basic config, IMEI/model capture, then the
// AT+CMUX row that switches the modem into 3GPP 27.010 mode.
func (m *Modem) initScript() *chat.Script {
	imeiMatch := chat.Match{Callback: func(argv []string) {
		line := argv[0]
		if len(line) != 15 {
			return
		}
		for i := 0; i < 15; i++ {
			c := line[i]
			if c < '0' || c > '9' {
				return
			}
			m.imei[i] = c - '0'
		}
	}}
	cgmmMatch := chat.Match{Callback: func(argv []string) {
		line := argv[0]
		if len(line) > 63 {
			line = line[:63]
		}
		m.hwinfo = line
	}}

	return &chat.Script{
		Cmds: []chat.Cmd{
			{NoRequest: false, Request: "", DeadTime: 100 * msec},
			{NoRequest: false, Request: "", DeadTime: 100 * msec},
			{NoRequest: false, Request: "", DeadTime: 100 * msec},
			{NoRequest: false, Request: "", DeadTime: 100 * msec},
			{Request: "E0", Match: okMatch},
			{Request: "+CMEE=1", Match: okMatch},
			{Request: "+CREG=0", Match: okMatch},
			{Request: "+CGSN", Match: imeiMatch},
			{NoRequest: true, Match: okMatch},
			{Request: "+CGMM", Match: cgmmMatch},
			{NoRequest: true, Match: okMatch},
			{Request: "+CMUX=0,0,5,127,10,3,30,10,2", DeadTime: 100 * msec},
		},
		AbortMatches: abortMatches,
		OnResult:     m.onResult,
	}
}

// netStatScript is net_stat_chat_script: AT+CREG? / AT+CGATT? polling.
func (m *Modem) netStatScript() *chat.Script {
	cregMatch := chat.Match{Prefix: "+CREG", InfoLine: true, Separator: ",", Callback: func(argv []string) {
		if len(argv) != 3 {
			return
		}
		tech, _ := strconv.Atoi(argv[1])
		stat, _ := strconv.Atoi(argv[2])
		m.accessTech = byte(tech)
		m.registrationStatus = byte(stat)
	}}
	cgattMatch := chat.Match{Prefix: "+CGATT", InfoLine: true, Callback: func(argv []string) {
		if len(argv) != 2 {
			return
		}
		v, _ := strconv.Atoi(argv[1])
		m.packetServiceAttached = v == 1
	}}

	return &chat.Script{
		Cmds: []chat.Cmd{
			{Request: "+CREG?", Match: cregMatch},
			{NoRequest: true, Match: okMatch},
			{Request: "+CGATT?", Match: cgattMatch},
			{NoRequest: true, Match: okMatch},
		},
		AbortMatches: abortMatches,
		OnResult:     m.onResult,
	}
}

// connectScript is connect_chat_script: set the PDP context then dial.
func (m *Modem) connectScript() *chat.Script {
	cgdcont := `+CGDCONT=1,"IP","` + m.cfg.APN + `","` + m.cfg.Username + `","` + m.cfg.Password + `"`

	return &chat.Script{
		Cmds: []chat.Cmd{
			{Request: cgdcont, Match: okMatch},
			{Request: "D*99#", DeadTime: 0},
		},
		AbortMatches: connectAbortMatches,
		OnResult:     m.onResult,
	}
}
