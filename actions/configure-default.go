package actions

import (
	"errors"
	"fmt"
	"io"

	"github.com/relloyd/scdpipe/config"
	"github.com/relloyd/scdpipe/helper"
)

type DefaultAddConfig struct {
	ConfigFile ConfigGetterSetter `errorTxt:"config-file" mandatory:"yes"`
	Key        string             `errorTxt:"key" mandatory:"yes"`
	Value      string             `errorTxt:"value" mandatory:"yes"`
	Force      bool
}

type DefaultRemoveConfig struct {
	ConfigFile ConfigGetterSetter `errorTxt:"config-file" mandatory:"yes"`
	Key        string             `errorTxt:"key" mandatory:"yes"`
}

// RunDefaultAdd sets a default flag value in the config file.
// Without Force it returns an error when the key exists.
func RunDefaultAdd(cfg *DefaultAddConfig, w io.Writer) error {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	var val interface{}
	if err := cfg.ConfigFile.Get(cfg.Key, &val); err == nil && !cfg.Force {
		return fmt.Errorf("key %q exists, use force to update the value or remove it first", cfg.Key)
	} else if err != nil && !errors.As(err, &config.KeyNotFoundError{}) {
		return err
	}
	if err := cfg.ConfigFile.Set(cfg.Key, config.ParseValue(cfg.Value)); err != nil {
		return fmt.Errorf("error writing config file after adding: %v", err)
	}
	_, err := fmt.Fprintf(w, "Key %q set\n", cfg.Key)
	return err
}

// RunDefaultRemove removes a key from the config file.
func RunDefaultRemove(cfg *DefaultRemoveConfig, w io.Writer) error {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	if err := cfg.ConfigFile.Delete(cfg.Key); err != nil {
		return fmt.Errorf("unable to delete key %q from config: %v", cfg.Key, err)
	}
	_, err := fmt.Fprintf(w, "Key %q removed\n", cfg.Key)
	return err
}

// RunDefaultList prints every key=value pair in the config file.
func RunDefaultList(cfg ConfigGetterSetter, w io.Writer) error {
	keys, err := cfg.GetAllKeys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		var val interface{}
		if err := cfg.Get(k, &val); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%v=%v\n", k, val); err != nil {
			return err
		}
	}
	return nil
}
