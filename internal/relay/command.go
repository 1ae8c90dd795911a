package relay

import "strings"

// Command is one parsed inbound line: "(id) name args". The identifier
// is optional and echoed back on whatever reply the command produces.
type Command struct {
	ID   string
	Name string
	Args string
}

// parseCommand splits one inbound line. Blank lines report ok=false.
func parseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, false
	}
	var cmd Command
	if strings.HasPrefix(line, "(") {
		end := strings.Index(line, ")")
		if end < 0 {
			return Command{}, false
		}
		cmd.ID = strings.TrimSpace(line[1:end])
		line = strings.TrimSpace(line[end+1:])
		if line == "" {
			return Command{}, false
		}
	}
	name, args, _ := strings.Cut(line, " ")
	cmd.Name = strings.ToLower(name)
	cmd.Args = strings.TrimSpace(args)
	return cmd, true
}

// splitOptions splits a "key=value,key=value" option string. A comma
// escaped as "\," is literal, so passwords containing commas survive.
func splitOptions(args string) [][2]string {
	var out [][2]string
	var cur strings.Builder
	flush := func() {
		part := cur.String()
		cur.Reset()
		if part == "" {
			return
		}
		k, v, _ := strings.Cut(part, "=")
		out = append(out, [2]string{strings.TrimSpace(k), v})
	}
	for i := 0; i < len(args); i++ {
		c := args[i]
		if c == '\\' && i+1 < len(args) && args[i+1] == ',' {
			cur.WriteByte(',')
			i++
			continue
		}
		if c == ',' {
			flush()
			continue
		}
		cur.WriteByte(c)
	}
	flush()
	return out
}
