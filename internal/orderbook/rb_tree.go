package orderbook

import (
	"galois/internal/decimal"
	"galois/internal/domain"
)

// rbColor and the tree below are a direct port of the teacher's CLRS-
// style red-black tree (order_book/rb_tree.go), generalized from an
// int64 price key to decimal.Decimal via Cmp. It is the price ladder:
// one tree per side, ordered by price, each node holding the
// PriceLevel's FIFO queue of resting orders.
type rbColor uint8

const (
	red   rbColor = 0
	black rbColor = 1
)

type rbNode struct {
	key    decimal.Decimal
	level  *PriceLevel
	color  rbColor
	left   *rbNode
	right  *rbNode
	parent *rbNode
}

// ladder is a price-ordered tree of PriceLevels.
type ladder struct {
	root *rbNode
	nilN *rbNode // sentinel, always black
	size int
}

func newLadder() *ladder {
	sentinel := &rbNode{color: black}
	return &ladder{root: sentinel, nilN: sentinel}
}

func (t *ladder) Size() int { return t.size }

func (t *ladder) find(price decimal.Decimal) *rbNode {
	n := t.root
	for n != t.nilN {
		switch c := price.Cmp(n.key); {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n
		}
	}
	return t.nilN
}

// FindLevel returns the PriceLevel at price, or nil.
func (t *ladder) FindLevel(price decimal.Decimal) *PriceLevel {
	n := t.find(price)
	if n == t.nilN {
		return nil
	}
	return n.level
}

// UpsertLevel returns the PriceLevel at price, creating an empty one
// if none exists.
func (t *ladder) UpsertLevel(price decimal.Decimal) *PriceLevel {
	y := t.nilN
	x := t.root
	for x != t.nilN {
		y = x
		switch c := price.Cmp(x.key); {
		case c < 0:
			x = x.left
		case c > 0:
			x = x.right
		default:
			return x.level
		}
	}

	lvl := &PriceLevel{Price: price}
	z := &rbNode{key: price, level: lvl, color: red, left: t.nilN, right: t.nilN, parent: y}

	if y == t.nilN {
		t.root = z
	} else if price.Cmp(y.key) < 0 {
		y.left = z
	} else {
		y.right = z
	}
	t.insertFixup(z)
	t.size++
	return lvl
}

// DeleteLevel removes the level at price (used once it empties).
func (t *ladder) DeleteLevel(price decimal.Decimal) bool {
	z := t.find(price)
	if z == t.nilN {
		return false
	}
	t.deleteNode(z)
	t.size--
	return true
}

// Best returns the level the given side should match next: the
// highest price for bids (max), the lowest for asks (min).
func (t *ladder) Best(side domain.Side) *PriceLevel {
	var n *rbNode
	if side == domain.Bid {
		n = t.maxNode(t.root)
	} else {
		n = t.minNode(t.root)
	}
	if n == t.nilN {
		return nil
	}
	return n.level
}

// ForEach walks levels from best to worst for the given side.
func (t *ladder) ForEach(side domain.Side, fn func(*PriceLevel) bool) {
	if side == domain.Bid {
		for n := t.maxNode(t.root); n != t.nilN; n = t.prev(n) {
			if !fn(n.level) {
				return
			}
		}
		return
	}
	for n := t.minNode(t.root); n != t.nilN; n = t.next(n) {
		if !fn(n.level) {
			return
		}
	}
}

func (t *ladder) minNode(n *rbNode) *rbNode {
	if n == t.nilN {
		return t.nilN
	}
	for n.left != t.nilN {
		n = n.left
	}
	return n
}

func (t *ladder) maxNode(n *rbNode) *rbNode {
	if n == t.nilN {
		return t.nilN
	}
	for n.right != t.nilN {
		n = n.right
	}
	return n
}

func (t *ladder) next(n *rbNode) *rbNode {
	if n.right != t.nilN {
		return t.minNode(n.right)
	}
	p := n.parent
	for p != t.nilN && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (t *ladder) prev(n *rbNode) *rbNode {
	if n.left != t.nilN {
		return t.maxNode(n.left)
	}
	p := n.parent
	for p != t.nilN && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

func (t *ladder) leftRotate(x *rbNode) {
	y := x.right
	x.right = y.left
	if y.left != t.nilN {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == t.nilN {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *ladder) rightRotate(y *rbNode) {
	x := y.left
	y.left = x.right
	if x.right != t.nilN {
		x.right.parent = y
	}
	x.parent = y.parent
	if y.parent == t.nilN {
		t.root = x
	} else if y == y.parent.right {
		y.parent.right = x
	} else {
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (t *ladder) insertFixup(z *rbNode) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					t.leftRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rightRotate(z.parent.parent)
			}
		} else {
			y := z.parent.parent.left
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					t.rightRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.leftRotate(z.parent.parent)
			}
		}
	}
	t.root.color = black
}

func (t *ladder) transplant(u, v *rbNode) {
	if u.parent == t.nilN {
		t.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *ladder) deleteNode(z *rbNode) {
	y := z
	yOrigColor := y.color
	var x *rbNode

	if z.left == t.nilN {
		x = z.right
		t.transplant(z, z.right)
	} else if z.right == t.nilN {
		x = z.left
		t.transplant(z, z.left)
	} else {
		y = t.minNode(z.right)
		yOrigColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yOrigColor == black {
		t.deleteFixup(x)
	}
}

func (t *ladder) deleteFixup(x *rbNode) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.leftRotate(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.right.color == black {
					w.left.color = black
					w.color = red
					t.rightRotate(w)
					w = x.parent.right
				}
				w.color = x.parent.color
				x.parent.color = black
				w.right.color = black
				t.leftRotate(x.parent)
				x = t.root
			}
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rightRotate(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.left.color == black {
					w.right.color = black
					w.color = red
					t.leftRotate(x.parent)
					w = x.parent.left
				}
				w.color = x.parent.color
				x.parent.color = black
				w.left.color = black
				t.rightRotate(x.parent)
				x = t.root
			}
		}
	}
	x.color = black
}
