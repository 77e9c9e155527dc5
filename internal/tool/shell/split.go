package shell

import "strings"

// Split tokenises a command line into an argv slice. Single quotes are
// literal, double quotes allow backslash escapes, and unquoted backslashes
// escape the next character. Shell metacharacters are not interpreted here;
// the security gate rejects commands containing them before execution.
func Split(command string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inToken bool
	)

	runes := []rune(command)
	i := 0
	for i < len(runes) {
		switch r := runes[i]; r {
		case ' ', '\t':
			if inToken {
				args = append(args, current.String())
				current.Reset()
				inToken = false
			}
			i++
		case '\'':
			inToken = true
			i++
			start := i
			for i < len(runes) && runes[i] != '\'' {
				i++
			}
			if i == len(runes) {
				return nil, ErrUnterminatedQuote
			}
			current.WriteString(string(runes[start:i]))
			i++
		case '"':
			inToken = true
			i++
			closed := false
			for i < len(runes) {
				if runes[i] == '\\' && i+1 < len(runes) {
					current.WriteRune(runes[i+1])
					i += 2
					continue
				}
				if runes[i] == '"' {
					closed = true
					i++
					break
				}
				current.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, ErrUnterminatedQuote
			}
		case '\\':
			inToken = true
			if i+1 < len(runes) {
				current.WriteRune(runes[i+1])
				i += 2
			} else {
				i++
			}
		default:
			inToken = true
			current.WriteRune(r)
			i++
		}
	}
	if inToken {
		args = append(args, current.String())
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return args, nil
}
