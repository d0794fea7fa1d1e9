package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
)

const incidentSystem = "You evaluate social media posts to determine whether they describe fire damage or " +
	"destruction in the United States. Be inclusive: if the post is plausibly about fire damage or " +
	"destruction in the USA, answer 'yes'."

const scoreSystem = "You rate how strongly social media posts relate to fire damage or destruction in the " +
	"USA. Respond with a single integer from 0 to 10."

// IncidentRequest builds the yes/no prompt. content is truncated to maxChars runes.
func IncidentRequest(content, url string, maxChars int) Request {
	var b strings.Builder
	b.WriteString("You are given the content of a social media post or news snippet. Determine whether it " +
		"describes a fire incident in the United States that likely damaged physical structures (homes, " +
		"apartments, offices, commercial buildings, factories, or infrastructure). The cause may be an " +
		"electrical fault, negligence, an accident, a natural disaster such as a wildfire, or arson. ")
	b.WriteString("Be inclusive: if the post suggests a fire with possible or likely structural damage, even " +
		"if not fully explicit, answer 'yes'. Otherwise answer 'no'.\n\n")
	fmt.Fprintf(&b, "Content: %s\nURL: %s\n", domain.Truncate(content, maxChars), url)
	b.WriteString("Only use the provided content. Do not assume details that are not in the text, but err on " +
		"the side of inclusion when a fire incident is plausible.")
	return Request{System: incidentSystem, User: b.String(), MaxTokens: 16}
}

// ScoreRequest builds the 0-10 scoring prompt. content is truncated to maxChars runes.
func ScoreRequest(content string, maxChars int) Request {
	user := "On a scale of 0 to 10, how strongly is the following post related to fire damage or " +
		"destruction in the United States? 0 means not related at all, 10 means it is definitely about " +
		"fire damage or destruction in the USA. Only use the post content.\n\n" +
		"Post content: " + domain.Truncate(content, maxChars)
	return Request{System: scoreSystem, User: user, MaxTokens: 8}
}

var scorePattern = regexp.MustCompile(`\b(10|[0-9])\b`)

// ParseScore reads the first standalone 0-10 integer in answer, or keeps the
// trimmed answer as a raw score.
func ParseScore(answer string) domain.Score {
	answer = strings.TrimSpace(answer)
	m := scorePattern.FindStringSubmatch(answer)
	if m == nil {
		return domain.RawScore(answer)
	}
	if m[1] == "10" {
		return domain.IntScore(10)
	}
	return domain.IntScore(int(m[1][0] - '0'))
}
