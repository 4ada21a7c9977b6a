package commands

import "fmt"

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

func pluralCases(cases, rules, versions int) string {
	return fmt.Sprintf("%s across %s and %s",
		plural(cases, "case", "cases"),
		plural(rules, "rule", "rules"),
		plural(versions, "compiler version", "compiler versions"))
}
