package vsqpack

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

// ttmpSimpleMod is one entry of TTMPL.mpl's top-level SimpleModsList.
type ttmpSimpleMod struct {
	FullPath  string `json:"FullPath"`
	Name      string `json:"Name"`
	DatFile   string `json:"DatFile"`
	ModOffset int64  `json:"ModOffset"`
	ModSize   int64  `json:"ModSize"`
}

type ttmpOption struct {
	Name      string          `json:"Name"`
	ModsJsons []ttmpSimpleMod `json:"ModsJsons"`
}

type ttmpModGroup struct {
	GroupName  string       `json:"GroupName"`
	OptionList []ttmpOption `json:"OptionList"`
}

type ttmpPage struct {
	ModGroups []ttmpModGroup `json:"ModGroups"`
}

type ttmpManifest struct {
	Name           string          `json:"Name"`
	SimpleModsList []ttmpSimpleMod `json:"SimpleModsList"`
	ModPackPages   []ttmpPage      `json:"ModPackPages"`
}

// choiceEntry is the decoded shape of one element of choices.json, which
// per spec.md §4.5 is "Array | Array<Array<Int>> | Array<Bool>": top-level
// entries are either a bare bool (SimpleModsList enable/disable) or a list
// of per-group selected-option indices (grouped page).
type choiceEntry struct {
	disabled      bool
	disabledSet   bool
	optionByGroup []int
}

func (c *choiceEntry) UnmarshalJSON(b []byte) error {
	var asBool bool
	if err := json.Unmarshal(b, &asBool); err == nil {
		c.disabled = !asBool
		c.disabledSet = true
		return nil
	}
	var asInts []int
	if err := json.Unmarshal(b, &asInts); err == nil {
		c.optionByGroup = asInts
		return nil
	}
	return xerrors.Errorf("choices.json entry is neither bool nor []int: %w", ErrInputParse)
}

// IngestTTMP populates v from a TexToolsModPack bundle already unpacked to
// directory dir (expected to contain TTMPL.mpl, TTMPD.mpd, and optionally
// choices.json), per spec.md §4.5 "From TTMP". Only entries whose DatFile
// matches v.ArchiveName() are ingested. Grouped page options are resolved
// against choices.json (defaulting to option 0 per group when absent);
// SimpleModsList entries may be individually disabled by a boolean
// choices.json entry at the same index.
func (v *VirtualSqPack) IngestTTMP(dir string, overwrite bool) (AddResult, error) {
	manifestBytes, err := os.ReadFile(filepath.Join(dir, "TTMPL.mpl"))
	if err != nil {
		return AddResult{}, err
	}
	var manifest ttmpManifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return AddResult{}, xerrors.Errorf("parsing TTMPL.mpl: %w: %v", ErrInputParse, err)
	}

	var choices []choiceEntry
	if choicesBytes, err := os.ReadFile(filepath.Join(dir, "choices.json")); err == nil {
		if err := json.Unmarshal(choicesBytes, &choices); err != nil {
			return AddResult{}, xerrors.Errorf("parsing choices.json: %w: %v", ErrInputParse, err)
		}
	}

	v.logger.Printf("ttmp: ingesting %q (%s)", manifest.Name, dir)

	mpd, err := v.openFiles.open(filepath.Join(dir, "TTMPD.mpd"), nil)
	if err != nil {
		return AddResult{}, err
	}

	var result AddResult

	addMod := func(m ttmpSimpleMod, context string) error {
		if m.DatFile != v.ArchiveName() {
			return nil
		}
		spec := NewPathSpecFromFullPath(m.FullPath)
		provider := NewSliceEntryProvider(spec, mpd, m.ModOffset, m.ModSize)
		one, err := v.AddEntry(provider, overwrite)
		if err != nil {
			return err
		}
		result.Merge(one)
		if len(one.Added) > 0 {
			v.logger.Printf("ttmp: added %s (%s)", m.FullPath, context)
		} else if len(one.Replaced) > 0 {
			v.logger.Printf("ttmp: replaced %s (%s)", m.FullPath, context)
		} else if len(one.SkippedExisting) > 0 {
			v.logger.Printf("ttmp: skipped %s, already present (%s)", m.FullPath, context)
		}
		return nil
	}

	for i, m := range manifest.SimpleModsList {
		if i < len(choices) && choices[i].disabledSet && choices[i].disabled {
			v.logger.Printf("ttmp: ignoring %s, disabled by choices.json", m.FullPath)
			continue
		}
		if err := addMod(m, "simple"); err != nil {
			return result, err
		}
	}

	for pageIdx, page := range manifest.ModPackPages {
		for groupIdx, group := range page.ModGroups {
			selected := 0
			if pageIdx < len(choices) && groupIdx < len(choices[pageIdx].optionByGroup) {
				selected = choices[pageIdx].optionByGroup[groupIdx]
			}
			if selected < 0 || selected >= len(group.OptionList) {
				continue
			}
			option := group.OptionList[selected]
			for _, m := range option.ModsJsons {
				context := group.GroupName + "/" + option.Name
				if err := addMod(m, context); err != nil {
					return result, err
				}
			}
		}
	}

	return result, nil
}
