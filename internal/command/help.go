package command

var helpText = []string{
	"create|c  [-w MIN] [-b MIN] [-d]   create a notification starting now",
	"queue|q   [-w MIN] [-b MIN] [-d]   create a notification after the last one ends",
	"delete|d  -i ID | -a               delete one or all notifications",
	"list|ls|l [-p]                     list live notifications, -p adds work progress",
	"history|h [--clear]                list archived notifications, --clear empties the archive",
	"test                               send a test alert to every channel",
	"clear                              clear the console",
	"exit|quit                          stop the server",
	"help                               show this text",
}

func HelpLines() []string {
	out := make([]string, len(helpText))
	copy(out, helpText)
	return out
}
