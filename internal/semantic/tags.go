package semantic

import "regexp"

const (
	TagErrorHandling = "error-handling"
	TagNetworkIO     = "network-io"
	TagRetry         = "retry"
	TagFileIO        = "file-io"
	TagDatabase      = "database"
	TagConcurrency   = "concurrency"
	TagLogging       = "logging"
)

type tagRule struct {
	tag string
	re  *regexp.Regexp
}

// Rules are checked in this order; the order is the order of the output.
var tagRules = []tagRule{
	{TagErrorHandling, regexp.MustCompile(`\b(try|except|catch|finally|raise|throw|recover)\b|if err != nil|errors\.(Is|As|New)`)},
	{TagNetworkIO, regexp.MustCompile(`\b(requests|httpx|aiohttp|urllib|axios|socket|grpc|websocket)\b|\bfetch\(|\bhttp\.(Get|Post|NewRequest|Client)|net\.Dial`)},
	{TagRetry, regexp.MustCompile(`(?i)\b(retry|retries|retrying|backoff|max_attempts|maxAttempts)\b`)},
	{TagFileIO, regexp.MustCompile(`\bopen\(|\bos\.(Open|OpenFile|Create|ReadFile|WriteFile|Remove)\b|\bfs\.(readFile|writeFile|readFileSync|writeFileSync)\b|\bpathlib\b|\bshutil\b|\bio\.(ReadAll|Copy)\b`)},
	{TagDatabase, regexp.MustCompile(`(?i)\b(select\s+.+\s+from|insert\s+into|update\s+\w+\s+set|delete\s+from)\b|\bcursor\b|\.execute\(|\.commit\(|\bsql\.(Open|DB|Tx)\b|\bQueryContext\b|\bsession\.(query|add)\b`)},
	{TagConcurrency, regexp.MustCompile(`\b(async|await|asyncio|threading|goroutine|Mutex|RWMutex|WaitGroup|errgroup|ThreadPoolExecutor)\b|\bgo func\(|\bPromise\.all\b|\bchan\b`)},
	{TagLogging, regexp.MustCompile(`\b(log|logger|logging|console|slog)\.(debug|info|warn|warning|error|exception|log|Debug|Info|Warn|Error|Printf|Println)\b`)},
}

// Tags lists the semantic tags whose patterns occur in code.
func Tags(code string) []string {
	var out []string
	for _, r := range tagRules {
		if r.re.MatchString(code) {
			out = append(out, r.tag)
		}
	}
	return out
}
