package tracker

// Runtime commands are funneled through one queue consumed once per loop
// iteration, whether they come from the keyboard or from the control API.

type commandKind int

const (
	cmdQuit commandKind = iota
	cmdPauseToggle
	cmdScreenshot
	cmdFullscreen
	cmdResetWindow
	cmdSwitchIndex
	cmdSwitchNext
	cmdSwitchPrev
	cmdBackendInfo
)

type command struct {
	kind  commandKind
	index int
}

// keyCommand maps a pressed key to a command. ok is false for keys without a
// binding.
func keyCommand(key int) (command, bool) {
	switch key {
	case 'q', 27: // q or Escape
		return command{kind: cmdQuit}, true
	case ' ':
		return command{kind: cmdPauseToggle}, true
	case 's':
		return command{kind: cmdScreenshot}, true
	case 'f':
		return command{kind: cmdFullscreen}, true
	case 'r':
		return command{kind: cmdResetWindow}, true
	case '1', '2', '3':
		return command{kind: cmdSwitchIndex, index: key - '1'}, true
	case 'n':
		return command{kind: cmdSwitchNext}, true
	case 'b':
		return command{kind: cmdSwitchPrev}, true
	case 'i':
		return command{kind: cmdBackendInfo}, true
	}
	return command{}, false
}
