package game

import (
	"fmt"

	"github.com/go-rod/rod/lib/input"
)

// rodKeys maps JS keyCode values to go-rod input keys.
var rodKeys = map[int]input.Key{
	13: input.Enter,
	27: input.Escape,
	32: input.Space,
	37: input.ArrowLeft,
	38: input.ArrowUp,
	39: input.ArrowRight,
	40: input.ArrowDown,
	65: input.KeyA,
	66: input.KeyB,
	67: input.KeyC,
	68: input.KeyD,
	69: input.KeyE,
	70: input.KeyF,
	71: input.KeyG,
	72: input.KeyH,
	73: input.KeyI,
	74: input.KeyJ,
	75: input.KeyK,
	76: input.KeyL,
	77: input.KeyM,
	78: input.KeyN,
	79: input.KeyO,
	80: input.KeyP,
	81: input.KeyQ,
	82: input.KeyR,
	83: input.KeyS,
	84: input.KeyT,
	85: input.KeyU,
	86: input.KeyV,
	87: input.KeyW,
	88: input.KeyX,
	89: input.KeyY,
	90: input.KeyZ,
}

func rodKey(code int) (input.Key, error) {
	k, ok := rodKeys[code]
	if !ok {
		return 0, fmt.Errorf("no key mapping for code %d", code)
	}
	return k, nil
}
