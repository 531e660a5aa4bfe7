package mqttc

import "strings"

// Topic layout:
//
//	colony/status/<agent>/<animal>   retained status after each change
//	colony/saves/<agent>/<animal>    save snapshots
//	colony/commands/<agent>          commands for one agent
//	colony/commands/all              commands for every agent
const (
	topicRoot       = "colony"
	CommandTopicAll = topicRoot + "/commands/all"
	StatusWildcard  = topicRoot + "/status/+/+"
	SaveWildcard    = topicRoot + "/saves/+/+"
)

func StatusTopic(agent, animal string) string {
	return topicRoot + "/status/" + agent + "/" + animal
}

func SaveTopic(agent, animal string) string {
	return topicRoot + "/saves/" + agent + "/" + animal
}

func CommandTopic(agent string) string {
	return topicRoot + "/commands/" + agent
}

// ParseAnimalTopic splits a status or save topic into its agent and animal.
func ParseAnimalTopic(topic string) (kind, agent, animal string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != topicRoot || parts[2] == "" || parts[3] == "" {
		return "", "", "", false
	}
	switch parts[1] {
	case "status", "saves":
		return parts[1], parts[2], parts[3], true
	}
	return "", "", "", false
}
