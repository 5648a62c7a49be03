// internal/browser/cdp/engine.go
package cdp

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/zonecheck/internal/browser"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Result codes reported in-band by the query engine.
const (
	codeNoMatch         = "nomatch"
	codeStale           = "stale"
	codeNotInteractable = "notinteractable"
	codeInvalid         = "invalid"
)

// descriptor is the JSON form of a browser.Locator handed to the engine.
type descriptor struct {
	Strategy string `json:"strategy"`
	Query    string `json:"query,omitempty"`
	Role     string `json:"role,omitempty"`
	Name     string `json:"name,omitempty"`
	HasText  string `json:"hasText,omitempty"`
	Nth      int    `json:"nth"`
	Handle   int    `json:"handle,omitempty"`
}

// engineResult is what every engine call returns by value.
type engineResult struct {
	OK      bool    `json:"ok"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Count   int     `json:"count"`
	IDs     []int   `json:"ids"`
	Text    string  `json:"text"`
	Bool    bool    `json:"bool"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func describe(loc browser.Locator) (descriptor, error) {
	d := descriptor{Strategy: loc.Strategy().String(), Nth: loc.Index(), HasText: loc.HasText()}
	switch loc.Strategy() {
	case browser.StrategyCSS, browser.StrategyXPath, browser.StrategyText:
		d.Query = loc.Query()
	case browser.StrategyRole:
		d.Role, d.Name = loc.Role()
	case browser.StrategyHandle:
		h, ok := loc.Element().(*handle)
		if !ok {
			return d, fmt.Errorf("%w: handle %s was not resolved by chromedp", browser.ErrUnsupported, loc)
		}
		d.Handle = h.id
	default:
		return d, fmt.Errorf("%w: %s", browser.ErrNoMatch, loc)
	}
	return d, nil
}

// expression builds the script evaluating op against loc.
func expression(loc browser.Locator, op string, arg any) (string, error) {
	d, err := describe(loc)
	if err != nil {
		return "", err
	}
	desc, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	a, err := json.Marshal(arg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s)(%s, %q, %s)", engineJS, desc, op, a), nil
}

// engineJS resolves locators inside the page. Handles live in a registry on
// window, so a new document invalidates all of them.
const engineJS = `function (desc, op, arg) {
  const reg = window.__zonecheck || (window.__zonecheck = { seq: 0, handles: new Map() });
  const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
  const lower = (s) => norm(s).toLowerCase();
  const fail = (code, message) => ({ ok: false, code: code, message: message || '' });
  const done = (extra) => Object.assign({ ok: true }, extra || {});

  const implicitRole = (el) => {
    const tag = el.tagName.toLowerCase();
    const type = (el.getAttribute('type') || 'text').toLowerCase();
    switch (tag) {
      case 'input':
        if (['button', 'submit', 'reset', 'image'].includes(type)) return 'button';
        if (type === 'checkbox') return 'checkbox';
        if (type === 'radio') return 'radio';
        if (type === 'range') return 'slider';
        if (type === 'number') return 'spinbutton';
        if (type === 'search') return el.hasAttribute('list') ? 'combobox' : 'searchbox';
        if (['text', 'email', 'tel', 'url', 'password'].includes(type)) return el.hasAttribute('list') ? 'combobox' : 'textbox';
        return '';
      case 'textarea': return 'textbox';
      case 'button': return 'button';
      case 'select': return el.multiple ? 'listbox' : 'combobox';
      case 'a': return el.hasAttribute('href') ? 'link' : '';
      case 'img': return el.getAttribute('alt') === '' ? 'presentation' : 'img';
      case 'h1': case 'h2': case 'h3': case 'h4': case 'h5': case 'h6': return 'heading';
      case 'ul': case 'ol': return 'list';
      case 'li': return 'listitem';
      case 'table': return 'table';
      case 'dialog': return 'dialog';
      case 'nav': return 'navigation';
    }
    if (el.isContentEditable) return 'textbox';
    return '';
  };
  const roleOf = (el) => {
    const explicit = (el.getAttribute('role') || '').trim().split(/\s+/)[0];
    return explicit || implicitRole(el);
  };
  const nameOf = (el) => {
    const aria = el.getAttribute('aria-label');
    if (aria && norm(aria)) return norm(aria);
    const by = el.getAttribute('aria-labelledby');
    if (by) {
      const text = by.split(/\s+/).map((id) => document.getElementById(id)).filter(Boolean).map((n) => n.textContent).join(' ');
      if (norm(text)) return norm(text);
    }
    if (el.labels && el.labels.length) {
      const text = Array.from(el.labels).map((l) => l.textContent).join(' ');
      if (norm(text)) return norm(text);
    }
    for (const attr of ['placeholder', 'alt', 'title']) {
      const v = el.getAttribute(attr);
      if (v && norm(v)) return norm(v);
    }
    if (['input', 'textarea', 'select'].includes(el.tagName.toLowerCase())) return '';
    return norm(el.textContent);
  };

  const query = (d) => {
    let els = [];
    switch (d.strategy) {
      case 'css':
        els = Array.from(document.querySelectorAll(d.query));
        break;
      case 'xpath': {
        const snap = document.evaluate(d.query, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
        for (let i = 0; i < snap.snapshotLength; i++) {
          const n = snap.snapshotItem(i);
          if (n.nodeType === Node.ELEMENT_NODE) els.push(n);
        }
        break;
      }
      case 'role': {
        const want = lower(d.name);
        els = Array.from(document.querySelectorAll('*')).filter((el) => roleOf(el) === d.role && (!want || lower(nameOf(el)).includes(want)));
        break;
      }
      case 'text': {
        const want = lower(d.query);
        const skip = ['SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE', 'HEAD'];
        const has = (el) => !skip.includes(el.tagName) && lower(el.textContent).includes(want);
        els = Array.from(document.querySelectorAll('body *')).filter((el) => has(el) && !Array.from(el.children).some(has));
        break;
      }
    }
    if (d.hasText) {
      const want = lower(d.hasText);
      els = els.filter((el) => lower(el.textContent).includes(want));
    }
    return els;
  };

  const register = (el) => {
    reg.seq += 1;
    reg.handles.set(reg.seq, el);
    return reg.seq;
  };

  const visible = (el) => {
    if (!el.isConnected) return false;
    const rect = el.getBoundingClientRect();
    if (rect.width <= 0 || rect.height <= 0) return false;
    if (typeof el.checkVisibility === 'function') return el.checkVisibility({ visibilityProperty: true });
    const style = window.getComputedStyle(el);
    return style.display !== 'none' && style.visibility !== 'hidden';
  };
  const enabled = (el) => {
    if (el.disabled) return false;
    if (el.closest('fieldset[disabled]')) return false;
    return el.getAttribute('aria-disabled') !== 'true';
  };
  const scroll = (el) => {
    if (typeof el.scrollIntoViewIfNeeded === 'function') el.scrollIntoViewIfNeeded(true);
    else el.scrollIntoView({ block: 'center', inline: 'center' });
  };
  const actionable = (el) => {
    if (!visible(el)) return 'element is not visible';
    if (!enabled(el)) return 'element is disabled';
    return '';
  };

  let els;
  try {
    if (desc.strategy === 'handle') {
      const el = reg.handles.get(desc.handle);
      if (!el || !el.isConnected) return fail('stale', 'handle ' + desc.handle + ' is no longer attached');
      els = [el];
    } else {
      els = query(desc);
    }
  } catch (e) {
    return fail('invalid', String(e && e.message || e));
  }

  if (op === 'count') return done({ count: els.length });

  const el = els[desc.nth || 0];
  if (op === 'visible') return done({ bool: !!el && visible(el) });
  if (op === 'element') return el || null;
  if (!el) return fail('nomatch', 'no element matches');

  switch (op) {
    case 'handle':
      return done({ ids: [register(el)] });
    case 'scroll':
      scroll(el);
      return done();
    case 'text':
      return done({ text: el.textContent || '' });
    case 'inner':
      return done({ text: typeof el.innerText === 'string' ? el.innerText : (el.textContent || '') });
    case 'enabled':
      return done({ bool: enabled(el) });
    case 'box': {
      const r = el.getBoundingClientRect();
      return done({ x: r.x, y: r.y, width: r.width, height: r.height });
    }
    case 'point': {
      const why = actionable(el);
      if (why) return fail('notinteractable', why);
      scroll(el);
      const r = el.getBoundingClientRect();
      const x = r.x + r.width / 2;
      const y = r.y + r.height / 2;
      const hit = document.elementFromPoint(x, y);
      if (hit && hit !== el && !el.contains(hit) && !hit.contains(el)) {
        return fail('notinteractable', 'element is covered by <' + hit.tagName.toLowerCase() + '>');
      }
      return done({ x: x, y: y });
    }
    case 'focus': {
      const why = actionable(el);
      if (why) return fail('notinteractable', why);
      scroll(el);
      el.focus();
      return done();
    }
    case 'clear': {
      const why = actionable(el);
      if (why) return fail('notinteractable', why);
      if (el.readOnly) return fail('notinteractable', 'element is read-only');
      scroll(el);
      el.focus();
      const tag = el.tagName.toLowerCase();
      if (tag === 'input' || tag === 'textarea') {
        const proto = tag === 'input' ? HTMLInputElement.prototype : HTMLTextAreaElement.prototype;
        Object.getOwnPropertyDescriptor(proto, 'value').set.call(el, '');
        el.dispatchEvent(new Event('input', { bubbles: true }));
      } else if (el.isContentEditable) {
        document.execCommand('selectAll', false, null);
        document.execCommand('delete', false, null);
      } else {
        return fail('notinteractable', 'element is not editable');
      }
      return done();
    }
    case 'commit':
      el.dispatchEvent(new Event('change', { bubbles: true }));
      return done();
  }
  return fail('invalid', 'unknown operation ' + op);
}`
