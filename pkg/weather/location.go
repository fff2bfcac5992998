package weather

import (
	"regexp"
	"strings"
)

var (
	topicPattern    = regexp.MustCompile(`(?i)(?:clima|tiempo|pronóstico)\s+(?:en|para|de)\s+([a-záéíóúüñ\s]+)`)
	locativePattern = regexp.MustCompile(`(?i)(?:en|para|de|sobre)\s+([a-záéíóúüñ\s]+?)(?:\?|\.|!|,|$)`)
	placePattern    = regexp.MustCompile(`(?i)^[a-záéíóúüñ\s]+$`)
)

// ExtractLocation finds the place a weather request is about.
// It returns "" when the message names no place.
func ExtractLocation(message string) string {
	cleaned := strings.TrimSpace(message)
	if cleaned == "" {
		return ""
	}

	for _, re := range []*regexp.Regexp{topicPattern, locativePattern} {
		if m := re.FindStringSubmatch(cleaned); len(m) > 1 {
			if loc := strings.TrimSpace(m[1]); loc != "" {
				return loc
			}
		}
	}

	// A bare place name such as "Buenos Aires".
	if placePattern.MatchString(cleaned) && len([]rune(cleaned)) > 2 {
		return cleaned
	}
	return ""
}

var codeDescriptions = map[int]string{
	0:  "está despejado",
	1:  "hay algo de nubosidad",
	2:  "hay nubosidad variable",
	3:  "el cielo está cubierto",
	45: "hay niebla",
	48: "hay niebla escarchada",
	51: "llovizna ligera",
	53: "llovizna moderada",
	55: "llovizna intensa",
	56: "llovizna helada ligera",
	57: "llovizna helada intensa",
	61: "lluvia ligera",
	63: "lluvia moderada",
	65: "lluvia fuerte",
	66: "lluvia helada ligera",
	67: "lluvia helada intensa",
	71: "nevadas ligeras",
	73: "nevadas moderadas",
	75: "nevadas intensas",
	77: "hay granizo",
	80: "chubascos ligeros",
	81: "chubascos moderados",
	82: "chubascos intensos",
	85: "nevadas ligeras intermitentes",
	86: "nevadas intensas intermitentes",
	95: "tormentas eléctricas",
	96: "tormentas con algo de granizo",
	99: "tormentas con granizo intenso",
}

// DescribeCode maps a WMO weather code to a Spanish description.
func DescribeCode(code int) string {
	if d, ok := codeDescriptions[code]; ok {
		return d
	}
	return "hay condiciones cambiantes"
}
