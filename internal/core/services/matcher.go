// Copyright 2025.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

import (
	"regexp"
	"strings"

	"github.com/hkoosha/ec2ssh/internal/core/domain"
)

// ConditionKind enumerates the recognized match-condition keys. Keeping the
// dispatch on a closed enum means a new condition key is a compile-time
// change, not a stringly-typed one.
type ConditionKind int

const (
	ConditionNameContains ConditionKind = iota
	ConditionNameRegex
	ConditionID
	ConditionRegion
	ConditionTypeContains
	ConditionHasPublicIP
)

// Condition is one parsed match condition.
type Condition struct {
	Kind  ConditionKind
	Value string
}

// ParseConditions converts the config-file condition map into typed
// conditions. Unknown keys are dropped, matching the rule that they must not
// affect evaluation.
func ParseConditions(conditions domain.MatchConditions) []Condition {
	parsed := make([]Condition, 0, len(conditions))
	for key, value := range conditions {
		switch key {
		case "name_contains":
			parsed = append(parsed, Condition{ConditionNameContains, value})
		case "name_regex":
			parsed = append(parsed, Condition{ConditionNameRegex, value})
		case "id":
			parsed = append(parsed, Condition{ConditionID, value})
		case "region":
			parsed = append(parsed, Condition{ConditionRegion, value})
		case "type_contains":
			parsed = append(parsed, Condition{ConditionTypeContains, value})
		case "has_public_ip":
			parsed = append(parsed, Condition{ConditionHasPublicIP, value})
		}
	}
	return parsed
}

// MatchesConditions reports whether the instance satisfies every condition
// in the set (AND semantics). An empty set matches everything. Pure function,
// no side effects.
func MatchesConditions(instance domain.Instance, conditions domain.MatchConditions) bool {
	for _, cond := range ParseConditions(conditions) {
		if !evaluate(instance, cond) {
			return false
		}
	}
	return true
}

func evaluate(instance domain.Instance, cond Condition) bool {
	switch cond.Kind {
	case ConditionNameContains:
		return strings.Contains(strings.ToLower(instance.Name), strings.ToLower(cond.Value))
	case ConditionNameRegex:
		re, err := regexp.Compile("(?i)" + cond.Value)
		if err != nil {
			// Malformed pattern is a config inconsistency, not a match.
			return false
		}
		return re.MatchString(instance.Name)
	case ConditionID:
		return instance.ID == cond.Value
	case ConditionRegion:
		return instance.Region == cond.Value
	case ConditionTypeContains:
		return strings.Contains(strings.ToLower(instance.Type), strings.ToLower(cond.Value))
	case ConditionHasPublicIP:
		expected := strings.EqualFold(cond.Value, "true")
		return instance.HasPublicIP() == expected
	}
	return false
}
