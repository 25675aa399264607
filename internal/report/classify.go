package report

import (
	"regexp"
	"strings"
)

// Other is the platform of builder names no platform rule matches
const Other = "other"

// rule matches names that match and do not match exclude
type rule struct {
	value   string
	match   *regexp.Regexp
	exclude *regexp.Regexp
}

func (r rule) matches(name string) bool {
	if !r.match.MatchString(name) {
		return false
	}
	return r.exclude == nil || !r.exclude.MatchString(name)
}

func on(value, match string) rule {
	return rule{value: value, match: regexp.MustCompile(match)}
}

func onExcept(value, match, exclude string) rule {
	return rule{value: value, match: regexp.MustCompile(match), exclude: regexp.MustCompile(exclude)}
}

// Rules are checked in order; the first match wins
var platformRules = []rule{
	onExcept("linux-mock", `^b2g_`, `^b2g_.*(test|talos)`),
	on("linux-mock", `^Linux .+ (build|non-unified|valgrind)$`),
	on("linux-mock", `^Android .+ (build|non-unified)$`),
	on("linux-mock", `^linux64-.+-haz`),
	onExcept("ubuntu32_vm", `^Ubuntu VM 12\.04 .+`, `^Ubuntu VM 12\.04 x64`),
	on("ubuntu32_vm", `^jetpack-.+-ubuntu32_vm`),
	on("ubuntu64_vm", `^Ubuntu (Code Coverage )?(ASAN )?VM 12\.04 x64 .+`),
	onExcept("ubuntu64_vm", `^Android (armv7 API 9|2\.3 (Armv6 )?Emulator) .+ test `, ` test (plain-reftest|crashtest|jsreftest)`),
	on("ubuntu64_vm", `^jetpack-.+-ubuntu64(-asan)?_vm`),
	on("ubuntu64_emulator_vm", `^Ubuntu (ASAN )?VM large 12\.04 x64 .+`),
	on("ubuntu64_emulator_vm", `^Android (armv7 API 9|2\.3 (Armv6 )?Emulator) .+ test (plain-reftest|crashtest|jsreftest)`),
	onExcept("ubuntu32_hw", `^Ubuntu HW 12\.04 `, `^Ubuntu HW 12\.04 x64`),
	on("ubuntu64_hw", `^Android (4\.2 )?x86`),
	on("ubuntu64_hw", `^Ubuntu (ASAN )?HW 12\.04 x64`),
	on("snowleopard", `^Rev4 MacOSX Snow Leopard 10\.6.+`),
	on("snowleopard", `^jetpack-.+-snowleopard`),
	on("lion", `^OS X 10\.7.+`),
	on("lion", `^OS X Mulet`),
	on("mountainlion", `^Rev5 MacOSX Mountain Lion 10\.8.+`),
	on("mountainlion", `^jetpack-.+-mountainlion`),
	on("mavericks", `^Rev5 MacOSX Mavericks 10\.9`),
	on("yosemite", `^Rev5 MacOSX Yosemite 10\.10`),
	on("xp-ix", `^Windows XP 32-bit`),
	on("xp-ix", `^jetpack-.+-xp`),
	on("win2k8", `^WINNT (5\.2|6\.1) `),
	on("win2k8", `^Win32 Mulet`),
	on("win7-ix", `^Windows 7 32-bit `),
	on("win7-ix", `^jetpack-.+-win7`),
	on("win8-ix", `^Windows 8`),
	on("win8-ix", `^jetpack-.+-win8`),
	on("win8-ix", `^WINNT 6\.2 `),
	on("panda-android", `^Android 4\.0 (armv7 API (10|11)|Panda)`),
}

var buildTypeRules = []rule{
	on("opt", `^.+ opt .+`),
	onExcept("opt", `^.+ build`, `leak test build`),
	on("opt", `^.+ talos .+`),
	on("opt", `^.+ (nightly|xulrunner|code coverage)$`),
	on("debug", `^.+ debug .+`),
	on("debug", `^.+ leak test build`),
}

var jobTypeRules = []rule{
	on("build", `^.+ build`),
	onExcept("build", `^.+ nightly$`, `l10n nightly$`),
	on("build", `^.+ (xulrunner|code coverage)$`),
	onExcept("unittest", `^.+ test .+`, `leak test `),
	on("talos", `^.+ talos .+`),
	on("repack", `^.+ l10n .+`),
}

func classify(rules []rule, name string) string {
	for _, rl := range rules {
		if rl.matches(name) {
			return rl.value
		}
	}
	return ""
}

// Platform returns the platform a builder runs on, or Other
func Platform(builderName string) string {
	if builderName == "" {
		return ""
	}
	builderName = strings.TrimPrefix(builderName, "TB ")
	if p := classify(platformRules, builderName); p != "" {
		return p
	}
	return Other
}

// BuildType returns opt or debug, or "" when the name carries neither
func BuildType(builderName string) string {
	return classify(buildTypeRules, builderName)
}

// JobType returns build, unittest, talos or repack, or "" when unknown
func JobType(builderName string) string {
	return classify(jobTypeRules, builderName)
}
