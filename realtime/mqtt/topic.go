package mqtt

import "strings"

// SharedFilter returns the MQTT 5 shared subscription filter for group.
// Members of one group compete for messages; distinct groups each get a copy.
func SharedFilter(group, filter string) string {
	if group == "" {
		return filter
	}
	return "$share/" + group + "/" + filter
}

// stripShare removes a $share/<group>/ prefix, leaving the plain filter that
// incoming topic names are matched against.
func stripShare(filter string) string {
	rest, ok := strings.CutPrefix(filter, "$share/")
	if !ok {
		return filter
	}
	_, plain, ok := strings.Cut(rest, "/")
	if !ok {
		return filter
	}
	return plain
}

func topicMatchesFilter(topic, filter string) bool {
	filter = stripShare(filter)
	if filter == "#" {
		return true
	}
	topicLevels := strings.Split(topic, "/")
	filterLevels := strings.Split(filter, "/")
	for i, f := range filterLevels {
		if f == "#" {
			return true
		}
		if i >= len(topicLevels) {
			return false
		}
		if f != "+" && f != topicLevels[i] {
			return false
		}
	}
	return len(topicLevels) == len(filterLevels)
}
