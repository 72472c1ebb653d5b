// Package validator implements the ObjectiveValidator: it derives an
// implicit task contract from the task text and verifies a planner's
// done=true claim against explicit and inferred validations.
//
// Grounded on original_source/agent/task_contract.py for the inference
// rules (including the Thai-language vocabulary, preserved verbatim since
// it is data, not code idiom) and original_source/agent/loop.py's
// acceptance rule.
package validator

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Contract is the implicit task contract inferred from task text.
type Contract struct {
	RequiredOutputs       []string
	SourceInputs          []string
	HintedDirectories     []string
	RequiredAbsent        []string
	RequiredPythonModules map[string][]string // script path -> required imports
	ExpectedTextMarkers   []string
}

var fileTokenRe = regexp.MustCompile(`[A-Za-z0-9_./-]+\.[A-Za-z0-9_]+`)

var outputIntentKeywords = []string{
	"write", "create", "generate", "save", "output",
	"บันทึก", "สร้าง", "เขียน", "เขียนผลลัพธ์", "เขียนผลลง", "เขียนลง", "ลงไฟล์",
}

var commonOutputExtensions = map[string]struct{}{
	"txt": {}, "md": {}, "json": {}, "csv": {}, "html": {}, "htm": {}, "xml": {},
	"yaml": {}, "yml": {}, "log": {}, "py": {}, "js": {}, "ts": {}, "jsx": {}, "tsx": {},
	"css": {}, "scss": {}, "sql": {}, "sh": {}, "bash": {}, "zsh": {}, "bat": {}, "ps1": {},
	"ini": {}, "cfg": {}, "conf": {}, "toml": {}, "lock": {}, "env": {},
}

var sourceInputExtensions = map[string]struct{}{
	"pdf": {}, "doc": {}, "docx": {}, "xls": {}, "xlsx": {}, "ppt": {}, "pptx": {},
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "bmp": {}, "webp": {}, "tif": {}, "tiff": {},
	"zip": {}, "gz": {}, "tar": {}, "parquet": {}, "pkl": {}, "pickle": {},
}

var deleteVerbRe = regexp.MustCompile(`(?i)\b(ลบ|ลบทิ้ง|delete|remove)\b`)

var inputRefRe = regexp.MustCompile(`(?i)\b(?:from|read|use|using|input|source|extracted? from)\s+["']?([A-Za-z0-9_./-]+\.[A-Za-z0-9_]+)["']?`)
var inputRefThaiRe = regexp.MustCompile(`(?:จาก|อ่าน|ใช้|อินพุต|ไฟล์ต้นฉบับ|จากไฟล์)\s*["']?([A-Za-z0-9_./-]+\.[A-Za-z0-9_]+)["']?`)

var hintedDirRe = regexp.MustCompile(`(?i)\b(?:in|from|under|inside)\s+([A-Za-z0-9_./-]+)/?\b`)
var hintedDirThaiRe = regexp.MustCompile(`(?:โฟลเดอร์|ในโฟลเดอร์)\s*([A-Za-z0-9_./-]+)`)

var pipInstallRe = regexp.MustCompile(`(?i)pip3?\s+install\s+([A-Za-z0-9_.\-\[\]]+)`)
var importRe = regexp.MustCompile(`(?i)\bimport\s+([A-Za-z0-9_]+)`)
var printVersionRe = regexp.MustCompile(`(?i)print.*version\s+([A-Za-z0-9_.\-]+)`)
var thaiModuleRe = regexp.MustCompile(`(?:ติดตั้ง\s*package|ใช้|use)\s+([A-Za-z0-9_.\-]+)`)

var quotedTextRe = regexp.MustCompile(`["“]([^"”]{1,200})["”]`)
var containsIndicatorRe = regexp.MustCompile(`(?i)(contains?|must contain|ข้อความ|มีข้อความ|มีคำว่า)`)

var moduleStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "it": {}, "this": {}, "that": {}, "file": {}, "script": {},
}

// ParseContract derives the implicit Contract from task.
func ParseContract(task string) Contract {
	c := Contract{RequiredPythonModules: map[string][]string{}}

	tokens := fileTokenRe.FindAllString(task, -1)
	normalized := map[string]struct{}{}
	var candidateFiles []string
	for _, tok := range tokens {
		n := normalizeFileToken(tok)
		if n == "" {
			continue
		}
		if _, seen := normalized[n]; seen {
			continue
		}
		normalized[n] = struct{}{}
		candidateFiles = append(candidateFiles, n)
	}

	hasOutputIntent := containsAny(task, outputIntentKeywords)

	inferredInputs := inferInputRefs(task)
	inputSet := map[string]struct{}{}
	for _, in := range inferredInputs {
		inputSet[in] = struct{}{}
	}

	for _, f := range candidateFiles {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(f), "."))
		_, isInput := inputSet[f]
		_, sourceExt := sourceInputExtensions[ext]

		if isInput || (hasOutputIntent && sourceExt) {
			c.SourceInputs = append(c.SourceInputs, f)
			continue
		}
		if looksLikeSkillScriptInputRef(f, task) {
			c.SourceInputs = append(c.SourceInputs, f)
			continue
		}
		if hasOutputIntent && looksLikeWorkspaceOutputCandidate(f) {
			c.RequiredOutputs = append(c.RequiredOutputs, f)
		}
	}

	c.HintedDirectories = inferHintedDirectories(task, c.SourceInputs, c.RequiredOutputs)

	if deleteVerbRe.MatchString(task) {
		for _, f := range candidateFiles {
			c.RequiredAbsent = append(c.RequiredAbsent, f)
		}
	}

	c.RequiredPythonModules = inferRequiredPythonModules(task, c.RequiredOutputs)
	c.ExpectedTextMarkers = inferExpectedTextMarkers(task)

	return c
}

func containsAny(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) || strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func normalizeFileToken(tok string) string {
	tok = strings.TrimPrefix(tok, "./")
	if filepath.IsAbs(tok) {
		return ""
	}
	if strings.Contains(tok, "://") || strings.HasPrefix(tok, "www.") {
		return ""
	}
	if !strings.Contains(tok, "/") {
		dots := strings.Count(tok, ".")
		if dots > 1 {
			return ""
		}
	}
	return tok
}

func inferInputRefs(task string) []string {
	var out []string
	for _, m := range inputRefRe.FindAllStringSubmatch(task, -1) {
		out = append(out, normalizeFileToken(m[1]))
	}
	for _, m := range inputRefThaiRe.FindAllStringSubmatch(task, -1) {
		out = append(out, normalizeFileToken(m[1]))
	}
	return out
}

func looksLikeSkillScriptInputRef(token, task string) bool {
	lower := strings.ToLower(token)
	if strings.HasPrefix(lower, "skillpacks/") || strings.HasPrefix(lower, "examples-skills/") ||
		strings.HasPrefix(lower, ".agentcore_skill_exec/") {
		return true
	}
	re := regexp.MustCompile(`(?i)python3?\s+` + regexp.QuoteMeta(token))
	return re.MatchString(task)
}

func looksLikeWorkspaceOutputCandidate(token string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(token), "."))
	if ext == "" {
		return false
	}
	if strings.Contains(token, "/") {
		return true
	}
	_, ok := commonOutputExtensions[ext]
	return ok
}

func inferHintedDirectories(task string, sources, outputs []string) []string {
	set := map[string]struct{}{}
	var out []string
	add := func(d string) {
		d = strings.Trim(d, "/")
		if d == "" || d == "." {
			return
		}
		if _, ok := set[d]; ok {
			return
		}
		set[d] = struct{}{}
		out = append(out, d)
	}
	for _, f := range append(append([]string{}, sources...), outputs...) {
		if dir := filepath.Dir(f); dir != "." {
			add(dir)
		}
	}
	for _, m := range hintedDirRe.FindAllStringSubmatch(task, -1) {
		add(m[1])
	}
	for _, m := range hintedDirThaiRe.FindAllStringSubmatch(task, -1) {
		add(m[1])
	}
	return out
}

func inferRequiredPythonModules(task string, outputs []string) map[string][]string {
	modules := map[string]struct{}{}
	for _, m := range pipInstallRe.FindAllStringSubmatch(task, -1) {
		modules[strings.ToLower(m[1])] = struct{}{}
	}
	for _, m := range importRe.FindAllStringSubmatch(task, -1) {
		modules[strings.ToLower(m[1])] = struct{}{}
	}
	for _, m := range printVersionRe.FindAllStringSubmatch(task, -1) {
		modules[strings.ToLower(m[1])] = struct{}{}
	}
	for _, m := range thaiModuleRe.FindAllStringSubmatch(task, -1) {
		name := strings.ToLower(m[1])
		if _, stop := moduleStopwords[name]; !stop {
			modules[name] = struct{}{}
		}
	}
	if len(modules) == 0 {
		return map[string][]string{}
	}
	var mods []string
	for m := range modules {
		mods = append(mods, m)
	}
	result := map[string][]string{}
	for _, f := range outputs {
		if strings.HasSuffix(f, ".py") {
			result[f] = mods
		}
	}
	return result
}

func inferExpectedTextMarkers(task string) []string {
	if !containsIndicatorRe.MatchString(task) {
		return nil
	}
	var out []string
	for _, m := range quotedTextRe.FindAllStringSubmatch(task, -1) {
		out = append(out, m[1])
	}
	return out
}
