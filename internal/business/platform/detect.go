package platform

import "regexp"

// idPattern 各平台单号格式，互不重叠
var idPatterns = []struct {
	platform Platform
	re       *regexp.Regexp
}{
	{Lalamove, regexp.MustCompile(`^LM\d{8}$`)},
	{Foodpanda, regexp.MustCompile(`^FP\d{10}$`)},
	{Internal, regexp.MustCompile(`^BEP\d{8}$`)},
}

// Detect 按单号格式识别平台，未匹配返回 Unknown
func Detect(raw string) Platform {
	for _, p := range idPatterns {
		if p.re.MatchString(raw) {
			return p.platform
		}
	}
	return Unknown
}

// Matches 返回所有匹配该单号的平台
func Matches(raw string) []Platform {
	var out []Platform
	for _, p := range idPatterns {
		if p.re.MatchString(raw) {
			out = append(out, p.platform)
		}
	}
	return out
}
