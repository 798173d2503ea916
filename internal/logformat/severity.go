package logformat

import "strings"

// NormalizeSeverity converts the many spellings of log severity levels to
// consistent all-caps short forms. Unknown values pass through uppercased
// so nothing is lost.
func NormalizeSeverity(severity string) string {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "TRACE", "TRC":
		return "TRACE"
	case "DEBUG", "DBG", "DEB":
		return "DEBUG"
	case "INFO", "INFORMATION", "INF", "NOTICE":
		return "INFO"
	case "WARN", "WARNING", "WRN":
		return "WARN"
	case "ERROR", "ERR":
		return "ERROR"
	case "FATAL", "FTL", "CRITICAL", "CRIT", "ALERT", "EMERG", "PANIC":
		return "FATAL"
	}

	if len(normalized) >= 4 {
		switch normalized[:4] {
		case "TRAC":
			return "TRACE"
		case "DEBU":
			return "DEBUG"
		case "INFO":
			return "INFO"
		case "WARN":
			return "WARN"
		case "ERRO":
			return "ERROR"
		case "FATA", "CRIT":
			return "FATAL"
		}
	}
	return normalized
}
