package overlay

// command is one undoable edit step. old holds the value the cell showed
// before the step; hadOld distinguishes "previous overlay entry" from
// "original bytes", since undoing the latter removes the key entirely.
type command struct {
	key    Key
	old    string
	value  string
	clear  bool
	hadOld bool
}

// execute applies cmd, pushes it for undo, and invalidates the redo chain.
// Callers hold o.mu.
func (o *Overlay) execute(cmd command) {
	o.apply(cmd)
	o.undo = append(o.undo, cmd)
	if len(o.undo) > o.history {
		o.undo = o.undo[1:]
	}
	o.redo = nil
	o.saved = false
}

func (o *Overlay) apply(cmd command) {
	if cmd.clear {
		delete(o.edits, cmd.key)
		return
	}
	o.edits[cmd.key] = cmd.value
}

func (o *Overlay) revert(cmd command) {
	if cmd.hadOld && !cmd.clear {
		o.edits[cmd.key] = cmd.old
		return
	}
	if cmd.clear {
		o.edits[cmd.key] = cmd.old
		return
	}
	delete(o.edits, cmd.key)
}

// Undo reverts the most recent edit. It reports whether anything was undone.
func (o *Overlay) Undo() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.undo) == 0 {
		return false
	}
	cmd := o.undo[len(o.undo)-1]
	o.undo = o.undo[:len(o.undo)-1]
	o.revert(cmd)
	o.redo = append(o.redo, cmd)
	o.saved = false
	return true
}

// Redo reapplies the most recently undone edit.
func (o *Overlay) Redo() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.redo) == 0 {
		return false
	}
	cmd := o.redo[len(o.redo)-1]
	o.redo = o.redo[:len(o.redo)-1]
	o.apply(cmd)
	o.undo = append(o.undo, cmd)
	o.saved = false
	return true
}

// CanUndo reports whether an edit is available to undo.
func (o *Overlay) CanUndo() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.undo) > 0
}

// CanRedo reports whether an undone edit is available to redo.
func (o *Overlay) CanRedo() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.redo) > 0
}
