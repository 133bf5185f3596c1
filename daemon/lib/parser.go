package lib

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

// ParseProfileLine parses one non-empty, non-comment profile line of the
// form "name;tSet;tMeat;minTime_minutes;powerMode;smokePwm;fanMode;
// fanOn_seconds;fanOff_seconds;useMeatTemp". Fields are clamped to the
// ranges in the data model. Returns an error if the line does not have
// exactly 10 fields.
func ParseProfileLine(line string) (dto.Step, error) {
	fields := strings.Split(line, ";")
	if len(fields) != 10 {
		return dto.Step{}, fmt.Errorf("expected 10 fields, got %d", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	minTimeMinutes, err := strconv.Atoi(fields[3])
	if err != nil {
		return dto.Step{}, fmt.Errorf("invalid minTime: %w", err)
	}
	powerMode, err := strconv.Atoi(fields[4])
	if err != nil {
		return dto.Step{}, fmt.Errorf("invalid powerMode: %w", err)
	}
	smokePwm, err := strconv.Atoi(fields[5])
	if err != nil {
		return dto.Step{}, fmt.Errorf("invalid smokePwm: %w", err)
	}
	fanMode, err := strconv.Atoi(fields[6])
	if err != nil {
		return dto.Step{}, fmt.Errorf("invalid fanMode: %w", err)
	}
	fanOnSeconds, err := strconv.Atoi(fields[7])
	if err != nil {
		return dto.Step{}, fmt.Errorf("invalid fanOn: %w", err)
	}
	fanOffSeconds, err := strconv.Atoi(fields[8])
	if err != nil {
		return dto.Step{}, fmt.Errorf("invalid fanOff: %w", err)
	}

	step := dto.Step{
		Name:         fields[0],
		TSet:         ClampTSet(ParseFloat(fields[1])),
		TMeatTarget:  ClampTMeatTarget(ParseFloat(fields[2])),
		MinTime:      minTimeMinutes * 60,
		PowerMode:    ClampPowerMode(powerMode),
		SmokePwm:     ClampSmokePwm(smokePwm),
		FanModeVal:   dto.FanMode(ClampFanMode(fanMode)),
		FanOnTimeMs:  ClampCycleMs(fanOnSeconds * 1000),
		FanOffTimeMs: ClampCycleMs(fanOffSeconds * 1000),
		UseMeatTemp:  parseUseMeatTemp(fields[9]),
	}
	return step, nil
}

// parseUseMeatTemp accepts "1"/"true"/"True" (case-insensitively) as true,
// anything else is false.
func parseUseMeatTemp(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true"
}

// FormatProfileLine renders a Step back into the 10-field wire format.
// format(parse(line)) round-trips for any canonical line.
func FormatProfileLine(s dto.Step) string {
	return fmt.Sprintf("%s;%s;%s;%d;%d;%d;%d;%d;%d;%s",
		s.Name,
		formatFloat(s.TSet),
		formatFloat(s.TMeatTarget),
		s.MinTime/60,
		s.PowerMode,
		int(s.SmokePwm),
		int(s.FanModeVal),
		s.FanOnTimeMs/1000,
		s.FanOffTimeMs/1000,
		formatBool(s.UseMeatTemp),
	)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ParseProfile parses a whole profile file's contents: comment lines
// (starting with '#') and blank lines are skipped; malformed lines are
// skipped with a logged warning rather than aborting the whole load.
func ParseProfile(name, contents string) dto.Profile {
	profile := dto.Profile{Name: name}
	for i, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		step, err := ParseProfileLine(line)
		if err != nil {
			logger.Warning("profile %s: skipping malformed line %d: %v", name, i+1, err)
			continue
		}
		if len(profile.Steps) >= constants.MaxSteps {
			logger.Warning("profile %s: truncating at %d steps, line %d ignored", name, constants.MaxSteps, i+1)
			continue
		}
		profile.Steps = append(profile.Steps, step)
	}
	return profile
}
