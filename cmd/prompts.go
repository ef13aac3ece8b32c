package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/encodeous/spantree/state"
	"github.com/manifoldco/promptui"
)

func promptDefaultStr(label string, def string, validateFunc promptui.ValidateFunc) string {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   def,
		AllowEdit: true,
		Validate:  validateFunc,
	}
	val, err := prompt.Run()
	if err != nil {
		panic(err)
	}
	return val
}

func promptYN(prefix string, def bool) bool {
	choose := promptui.Select{
		Label:     prefix,
		Items:     []string{"Yes", "No"},
		Size:      2,
		CursorPos: 0,
	}
	if !def {
		choose.CursorPos = 1
	}
	run, _, err := choose.Run()
	if err != nil {
		return false
	}
	return run == 0
}

func promptDefaultInt(label string, def int, min int) int {
	val := promptDefaultStr(label, strconv.Itoa(def), func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		if v < min {
			return fmt.Errorf("must be at least %d", min)
		}
		return nil
	})
	v, _ := strconv.Atoi(val)
	return v
}

func promptDefaultFloat(label string, def float64) float64 {
	val := promptDefaultStr(label, strconv.FormatFloat(def, 'f', -1, 64), func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		if v <= 0 {
			return fmt.Errorf("must be positive")
		}
		return nil
	})
	v, _ := strconv.ParseFloat(val, 64)
	return v
}

func safeSaveFile(path string, name string) string {
Save:
	path, err := filepath.Abs(path)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Where do you want to save the %s?\n", name)
	path = promptDefaultStr("path", path, state.PathValidator)

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Warning: %s file already exists: %s, do you want to overwrite it?\n", name, path)
		res := promptYN("Overwrite?", false)
		if !res {
			goto Save
		}
	}
	return path
}
